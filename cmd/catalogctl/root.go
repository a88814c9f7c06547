package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/auth"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// Config keys. Each is also a flag and a VINOTEKA_* variable.
const (
	keyConfig    = "config"
	keyAPIURL    = "api-url"
	keyUsername  = "username"
	keyPassword  = "password"
	keyLang      = "lang"
	keySchemaDir = "schema-dir"
	keyTimeout   = "timeout"
	keyVerbose   = "verbose"
)

// app carries what every command needs.
type app struct {
	v   *viper.Viper
	out io.Writer
	log *logger.Logger
}

func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	a := &app{v: v, out: out, log: logger.Nop()}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the Vinoteka wine catalog",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.String(keyConfig, "", "YAML config file")
	pf.String(keyAPIURL, "", "catalog API base URL")
	pf.String(keyUsername, "", "catalog API user")
	pf.String(keyPassword, "", "catalog API password")
	pf.String(keyLang, lang.Default.String(), "content language (en, ru, fr)")
	pf.String(keySchemaDir, "schemas", "directory of YAML entity schemas")
	pf.Duration(keyTimeout, 15*time.Second, "catalog API timeout")
	pf.BoolP(keyVerbose, "v", false, "log requests to stderr")
	_ = v.BindPFlags(pf)

	v.SetEnvPrefix("VINOTEKA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(newSchemaCmd(a), newListCmd(a), newDeleteCmd(a))
	return root
}

func (a *app) setup() error {
	if path := a.v.GetString(keyConfig); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if a.v.GetBool(keyVerbose) {
		log, err := logger.New(logger.Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}})
		if err != nil {
			return err
		}
		a.log = log
	}
	return nil
}

// registry loads the struct models and the schema directory.
func (a *app) registry() (*metadata.Registry, error) {
	return catalog.LoadRegistry(a.v.GetString(keySchemaDir))
}

// entity looks a definition up by name.
func (a *app) entity(name string) (metadata.EntityDef, error) {
	reg, err := a.registry()
	if err != nil {
		return metadata.EntityDef{}, err
	}
	def, ok := reg.Get(name)
	if !ok {
		names := make([]string, 0)
		for _, d := range reg.List() {
			names = append(names, d.Name)
		}
		sort.Strings(names)
		return metadata.EntityDef{}, fmt.Errorf("unknown entity %q (known: %s)", name, strings.Join(names, ", "))
	}
	return def, nil
}

// connect signs in and returns a context carrying the session token.
func (a *app) connect(ctx context.Context) (context.Context, *catalogapi.Client, error) {
	baseURL := a.v.GetString(keyAPIURL)
	if baseURL == "" {
		return ctx, nil, fmt.Errorf("%s is required (flag or VINOTEKA_API_URL)", keyAPIURL)
	}
	client, err := catalogapi.New(catalogapi.Config{
		BaseURL: baseURL,
		Timeout: a.v.GetDuration(keyTimeout),
	}, a.log)
	if err != nil {
		return ctx, nil, err
	}

	sess := session.New(time.Now())
	sess.Language = lang.Parse(a.v.GetString(keyLang))
	service := auth.NewService(client, session.NewMemoryStore(), a.log)
	creds := auth.Credentials{
		Username: a.v.GetString(keyUsername),
		Password: a.v.GetString(keyPassword),
	}
	if err := service.SignIn(ctx, sess, creds); err != nil {
		return ctx, nil, err
	}
	return appctx.WithSession(ctx, sess.Context()), client, nil
}

// manager signs in and builds a manager for entity.
func (a *app) manager(ctx context.Context, entity string) (context.Context, *entitymgr.Manager, *catalogapi.Client, error) {
	def, err := a.entity(entity)
	if err != nil {
		return ctx, nil, nil, err
	}
	ctx, client, err := a.connect(ctx)
	if err != nil {
		return ctx, nil, nil, err
	}
	m := entitymgr.New(entitymgr.Config{
		Def:     def,
		Binding: client.Collection(def.Collection),
		Logger:  a.log,
	})
	return ctx, m, client, nil
}
