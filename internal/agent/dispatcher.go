package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

// DefaultTimeout bounds a full command round-trip to the agent, including
// connection setup and body read.
const DefaultTimeout = 30 * time.Second

const maxResponseBody = 1 << 20 // 1 MiB

// Action identifies a remote operation on a host agent.
type Action string

const (
	ActionStartInstance    Action = "start_instance"
	ActionStopInstance     Action = "stop_instance"
	ActionRestartInstance  Action = "restart_instance"
	ActionDeleteInstance   Action = "delete_instance"
	ActionStartAll         Action = "start_all"
	ActionStopAll          Action = "stop_all"
	ActionRestartAll       Action = "restart_all"
	ActionScaleTo          Action = "scale_to"
	ActionAddInstance      Action = "add_instance"
	ActionBroadcastMessage Action = "broadcast_message"
	ActionGetConfig        Action = "get_config"
	ActionSetConfig        Action = "set_config"
)

type actionSpec struct {
	method      string
	path        string // instance paths carry a %d for the instance id
	role        domain.Role
	perInstance bool
	hasBody     bool
}

// catalog pins each action to its agent endpoint and the minimum role that
// may invoke it. Lifecycle actions, scaling and broadcasts need an operator;
// anything touching configuration or adding/removing instances needs an
// admin.
var catalog = map[Action]actionSpec{
	ActionStartInstance:    {method: http.MethodPost, path: "/api/servers/%d/start", role: domain.RoleOperator, perInstance: true},
	ActionStopInstance:     {method: http.MethodPost, path: "/api/servers/%d/stop", role: domain.RoleOperator, perInstance: true},
	ActionRestartInstance:  {method: http.MethodPost, path: "/api/servers/%d/restart", role: domain.RoleOperator, perInstance: true},
	ActionDeleteInstance:   {method: http.MethodDelete, path: "/api/servers/%d", role: domain.RoleAdmin, perInstance: true},
	ActionStartAll:         {method: http.MethodPost, path: "/api/servers/start-all", role: domain.RoleOperator},
	ActionStopAll:          {method: http.MethodPost, path: "/api/servers/stop-all", role: domain.RoleOperator},
	ActionRestartAll:       {method: http.MethodPost, path: "/api/servers/restart-all", role: domain.RoleOperator},
	ActionScaleTo:          {method: http.MethodPost, path: "/api/servers/scale", role: domain.RoleOperator, hasBody: true},
	ActionAddInstance:      {method: http.MethodPost, path: "/api/servers", role: domain.RoleAdmin, hasBody: true},
	ActionBroadcastMessage: {method: http.MethodPost, path: "/api/servers/message", role: domain.RoleOperator, hasBody: true},
	ActionGetConfig:        {method: http.MethodGet, path: "/api/config", role: domain.RoleAdmin},
	ActionSetConfig:        {method: http.MethodPut, path: "/api/config", role: domain.RoleAdmin, hasBody: true},
}

// RequiredRole reports the minimum effective role for action. The second
// return is false for an action the dispatcher does not know.
func RequiredRole(action Action) (domain.Role, bool) {
	spec, ok := catalog[action]
	if !ok {
		return domain.RoleOwner, false
	}
	return spec.role, true
}

// Actions lists every known action name, for validation messages.
func Actions() []Action {
	out := make([]Action, 0, len(catalog))
	for a := range catalog {
		out = append(out, a)
	}
	return out
}

// Command is a single operator action bound for a host agent.
type Command struct {
	Action     Action
	InstanceID int
	Payload    any
}

// Result is the agent's reply to an accepted command.
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

// Dispatcher relays commands to host agents over HTTP. It holds no per-host
// state; the target address and API key travel with every call.
type Dispatcher struct {
	client *http.Client
	logger logger.Logger
}

func NewDispatcher(log logger.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Send relays cmd to the agent serving host and classifies the outcome:
// a reply with a non-2xx status is an agent rejection carrying the agent's
// body verbatim, while any transport failure (refused connection, DNS,
// timeout) means the agent is unreachable. Nothing is retried; the caller
// decides whether the action is safe to repeat.
func (d *Dispatcher) Send(ctx context.Context, host *domain.Host, cmd Command) (*Result, error) {
	spec, ok := catalog[cmd.Action]
	if !ok {
		return nil, domain.Ef(domain.KindInvalid, "unknown action %q", cmd.Action)
	}
	if spec.perInstance && cmd.InstanceID <= 0 {
		return nil, domain.Ef(domain.KindInvalid, "action %s requires an instance id", cmd.Action)
	}

	path := spec.path
	if spec.perInstance {
		path = fmt.Sprintf(spec.path, cmd.InstanceID)
	}
	url := fmt.Sprintf("http://%s:%d%s", host.Address, host.Port, path)

	var body io.Reader
	if spec.hasBody {
		raw, err := json.Marshal(cmd.Payload)
		if err != nil {
			return nil, domain.WrapE(domain.KindInvalid, "encode command payload", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, url, body)
	if err != nil {
		return nil, domain.WrapE(domain.KindInternal, "build agent request", err)
	}
	req.Header.Set("X-Api-Key", host.AgentKey)
	if spec.hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("agent unreachable",
			logger.String("host_id", host.HostID),
			logger.String("action", string(cmd.Action)),
			logger.Error(err),
		)
		return nil, domain.WrapE(domain.KindAgentUnreachable, fmt.Sprintf("agent at %s:%d unreachable", host.Address, host.Port), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.WrapE(domain.KindAgentUnreachable, "read agent response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn("agent rejected command",
			logger.String("host_id", host.HostID),
			logger.String("action", string(cmd.Action)),
			logger.Int("status", resp.StatusCode),
		)
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, domain.Ef(domain.KindAgentRejected, "agent rejected %s: %s", cmd.Action, msg)
	}

	d.logger.Info("agent command dispatched",
		logger.String("host_id", host.HostID),
		logger.String("action", string(cmd.Action)),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)),
	)

	result := &Result{StatusCode: resp.StatusCode}
	if len(raw) > 0 && json.Valid(raw) {
		result.Body = json.RawMessage(raw)
	}
	return result, nil
}
