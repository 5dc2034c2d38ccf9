package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the relational persistence layer for users, hosts and access
// grants. Status snapshots never land here; they live in the status cache.
type Store struct {
	db *gorm.DB
}

type userModel struct {
	ID               uint   `gorm:"primaryKey"`
	ExternalID       string `gorm:"uniqueIndex;not null"`
	Username         string
	AvatarHash       string
	Email            string
	IsSuperAdmin     bool    `gorm:"not null;default:false"`
	SessionToken     *string `gorm:"index"`
	SessionExpiresAt *time.Time
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

func (userModel) TableName() string { return "users" }

type hostModel struct {
	ID         uint   `gorm:"primaryKey"`
	HostID     string `gorm:"uniqueIndex;not null"`
	OwnerID    uint   `gorm:"uniqueIndex:idx_hosts_owner_address;not null"`
	Name       string
	Address    string `gorm:"uniqueIndex:idx_hosts_owner_address;not null"`
	Port       int
	Region     string
	Version    string
	AgentKey   string `gorm:"index;not null"`
	Online     bool
	LastSeenAt time.Time
	CreatedAt  time.Time
}

func (hostModel) TableName() string { return "hosts" }

type grantModel struct {
	ID          uint   `gorm:"primaryKey"`
	HostID      uint   `gorm:"uniqueIndex:idx_grants_host_external;index;not null"`
	ExternalID  string `gorm:"uniqueIndex:idx_grants_host_external;index;not null"`
	UserID      *uint  `gorm:"index"`
	Role        int    `gorm:"not null;default:0"`
	GrantedByID uint
	CreatedAt   time.Time
}

func (grantModel) TableName() string { return "access_grants" }

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&userModel{}, &hostModel{}, &grantModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
