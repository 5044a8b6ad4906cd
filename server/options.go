package server

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/security"
)

// ExtensionClientIP is the request extension a transport binding uses to
// pass the caller's IP address, for audit records.
const ExtensionClientIP = "client_ip"

// Options are the collaborators of the handlers. Only Model is required.
type Options struct {
	Model  oauth.Model
	Config *Config

	Logger          *slog.Logger
	Auditor         *security.Auditor
	Instrumentation *instrumentation.Instrumentation

	// UserResolver resolves the resource owner of an authorization
	// request. Defaults to an AuthenticateHandler.
	UserResolver UserResolver

	// Now is the clock used for all expiry computations and checks.
	Now func() time.Time
}

// env is the resolved form of Options shared by every handler.
type env struct {
	model   oauth.Model
	config  *Config
	logger  *slog.Logger
	auditor *security.Auditor
	inst    *instrumentation.Instrumentation
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func newEnv(opts Options) (*env, error) {
	if opts.Model == nil {
		return nil, oauth.NewInvalidArgumentError("Missing parameter: `model`")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	inst := opts.Instrumentation
	if inst == nil {
		inst = instrumentation.Noop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &env{
		model:   opts.Model,
		config:  applyDefaults(opts.Config, logger),
		logger:  logger,
		auditor: opts.Auditor,
		inst:    inst,
		metrics: inst.Metrics(),
		tracer:  inst.Tracer("server"),
		now:     now,
	}, nil
}

func clientIP(req *oauth.Request) string {
	ip, _ := req.Extensions[ExtensionClientIP].(string)
	return ip
}


func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
