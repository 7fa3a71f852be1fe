// Package registrar runs an operator-supplied command to register and
// authorize one account.
//
// The command receives the account through the environment:
//
//	OAI_TEAM_EMAIL     account email
//	OAI_TEAM_PASSWORD  account password
//	OAI_TEAM_MODE      "register" or "authorize"
//	OAI_TEAM_TEAM      team name, empty for stand-alone registration
//
// and prints one JSON object on stdout, optionally after other output:
//
//	{"status":"success","session":{"accessToken":"..."}}
//
// status is one of success, failed, domain_blacklisted or rejected. A
// non-zero exit is a failed registration whatever was printed.
package registrar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
	"github.com/CoderDKai/oai-team-automation/internal/provision"
)

// Environment variable names passed to the command.
const (
	EnvEmail    = "OAI_TEAM_EMAIL"
	EnvPassword = "OAI_TEAM_PASSWORD"
	EnvMode     = "OAI_TEAM_MODE"
	EnvTeam     = "OAI_TEAM_TEAM"
)

// DefaultTimeout bounds one command run.
const DefaultTimeout = 10 * time.Minute

// waitDelay bounds how long output is drained after the command is killed,
// in case a grandchild still holds its stdout.
const waitDelay = 2 * time.Second

// Command is a provision.Registrar backed by an external executable.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	logger  *logging.Logger
}

// New returns a Command running path with args.
func New(path string, args []string, logger *logging.Logger) *Command {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Command{Path: path, Args: args, Timeout: DefaultTimeout, logger: logger}
}

// RegisterAndAuthorize implements provision.Registrar. An error means the
// command could not be run to completion (not found, timed out); failures
// the command reports itself come back as a RegisterFailed response.
func (c *Command) RegisterAndAuthorize(ctx context.Context, req provision.Request) (provision.Response, error) {
	log := c.logger.WithAccount(req.Email).With("mode", string(req.Mode))
	if strings.TrimSpace(c.Path) == "" {
		return provision.Response{}, errors.NewValidationError("no registrar command configured").WithField("registrar.command")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env,
		EnvEmail+"="+req.Email,
		EnvPassword+"="+req.Password,
		EnvMode+"="+string(req.Mode),
		EnvTeam+"="+req.Team,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	log.Debug("running registrar", "command", c.Path)
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return provision.Response{}, errors.NewTimeoutError("registrar", timeout).WithCause(err)
	}
	if ctx.Err() != nil {
		return provision.Response{}, fmt.Errorf("registrar: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Warn("registrar exited with an error",
			"exit_code", exitErr.ExitCode(),
			"elapsed", elapsed.String(),
			"stderr", tail(stderr.String(), 500))
		return provision.Response{
			Status:  provision.RegisterFailed,
			Message: fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), tail(stderr.String(), 200)),
		}, nil
	}
	if err != nil {
		return provision.Response{}, fmt.Errorf("run registrar %s: %w", c.Path, err)
	}

	resp, perr := Parse(stdout.Bytes())
	if perr != nil {
		log.Warn("registrar output not understood", "error", perr.Error(), "stdout", tail(stdout.String(), 500))
		return provision.Response{Status: provision.RegisterFailed, Message: perr.Error()}, nil
	}
	log.Info("registrar finished", "status", string(resp.Status), "elapsed", elapsed.String())
	return resp, nil
}

// Parse reads the command's verdict from its stdout. The verdict is the
// whole output when that is a JSON object, otherwise the last line that is.
func Parse(out []byte) (provision.Response, error) {
	doc, ok := lastObject(out)
	if !ok {
		return provision.Response{}, errors.NewValidationError("no JSON object in registrar output").WithField("stdout")
	}

	status := provision.RegisterStatus(strings.ToLower(strings.TrimSpace(doc.Get("status").String())))
	switch status {
	case provision.RegisterSuccess, provision.RegisterFailed,
		provision.RegisterDomainUnsupported, provision.RegisterRejected:
	default:
		return provision.Response{}, errors.NewValidationError("unknown registrar status").
			WithField("status").WithValue(doc.Get("status").String())
	}

	resp := provision.Response{Status: status, Message: doc.Get("error").String()}
	if s := doc.Get("session"); s.IsObject() {
		if m, ok := s.Value().(map[string]any); ok {
			resp.Session = m
		}
	}
	if status == provision.RegisterSuccess && resp.Session == nil {
		resp.Session = map[string]any{}
	}
	return resp, nil
}

func lastObject(out []byte) (gjson.Result, bool) {
	trimmed := bytes.TrimSpace(out)
	if gjson.ValidBytes(trimmed) {
		if r := gjson.ParseBytes(trimmed); r.IsObject() {
			return r, true
		}
	}
	lines := bytes.Split(trimmed, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' || !gjson.ValidBytes(line) {
			continue
		}
		return gjson.ParseBytes(line), true
	}
	return gjson.Result{}, false
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
