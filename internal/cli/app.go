package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/flagx"
	"github.com/dmitrijs2005/staffkeeper/internal/identity"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/services"
)

// Backend is what the commands need from the assembled engine.
type Backend interface {
	Service() *services.StaffService
	Migrate(ctx context.Context) error
	FetchImport(ctx context.Context, key string) ([]byte, error)
	SignIn(ctx context.Context, username, password string) (*identity.TokenPair, error)
	VerifyToken(ctx context.Context, token string) (*auth.TokenClaims, error)
	Close() error
}

// OpenFunc builds a Backend from the resolved configuration.
type OpenFunc func(ctx context.Context, c *config.Config, l logging.Logger) (Backend, error)

type App struct {
	open    OpenFunc
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	version string

	config  *config.Config
	backend Backend
	as      string
	verbose bool
}

// NewApp returns an App reading prompts from in, printing results to out and
// logs to errOut.
func NewApp(open OpenFunc, in io.Reader, out, errOut io.Writer, version string) *App {
	return &App{open: open, in: bufio.NewReader(in), out: out, errOut: errOut, version: version}
}

// Execute runs the command line args.
func (a *App) Execute(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(flagx.ConfigPath(args))
	if err != nil {
		return err
	}
	a.config = cfg

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err = root.ExecuteContext(ctx)
	return errors.Join(err, a.disconnect())
}

func (a *App) logger() logging.Logger {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	return logging.NewJSONLogger(a.errOut, level)
}

func (a *App) connect(ctx context.Context) error {
	b, err := a.open(ctx, a.config, a.logger())
	if err != nil {
		return err
	}
	a.backend = b
	return nil
}

func (a *App) disconnect() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

// actor resolves --as against the stored user records.
func (a *App) actor(ctx context.Context) (services.Actor, error) {
	if a.as == "" {
		return services.Actor{}, fmt.Errorf("%w: --as is required", common.ErrorUnauthorized)
	}
	return a.backend.Service().ResolveActor(ctx, a.as)
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints v when it carries something, then returns err. Reports
// and outcomes are printed on failure too, since they describe how far the
// operation got.
func printResult[T any](a *App, v *T, err error) error {
	if v != nil {
		if perr := a.print(v); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

// Exit codes returned by ExitCode.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 2
	ExitPermission   = 3
	ExitNotFound     = 4
	ExitConflict     = 5
	ExitProvider     = 6
	ExitConfirmation = 7
)

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, common.ErrValidation):
		return ExitValidation
	case errors.Is(err, common.ErrPermission), errors.Is(err, common.ErrorUnauthorized):
		return ExitPermission
	case errors.Is(err, common.ErrorNotFound):
		return ExitNotFound
	case errors.Is(err, common.ErrConflict), errors.Is(err, common.ErrCategoryInUse), errors.Is(err, common.ErrSameCategory):
		return ExitConflict
	case errors.Is(err, common.ErrProvider):
		return ExitProvider
	case errors.Is(err, common.ErrConfirmationRequired):
		return ExitConfirmation
	}
	return ExitFailure
}
