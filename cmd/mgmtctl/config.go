package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mender-qa/mgmtctl/pkg/api"
	"github.com/mender-qa/mgmtctl/pkg/settings"
	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/workflow"
)

// Configuration keys. Each key is also read from MGMTCTL_<KEY> and from the
// plain variable the operational scripts used.
const (
	keyURL            = "url"
	keyUsername       = "username"
	keyPassword       = "password"
	keyInsecure       = "insecure"
	keyTimeout        = "timeout"
	keyConcurrency    = "concurrency"
	keyDelay          = "delay"
	keyPerPage        = "per-page"
	keyDevicesQty     = "devices_qty"
	keyGroupName      = "group_name"
	keyDeploymentName = "deployment_name"
	keyArtifactName   = "artifact_name"
	keyDebug          = "debug"
	keyLogLevel       = "log-level"
)

var envAliases = map[string]string{
	keyURL:            "URL",
	keyUsername:       "USERNAME",
	keyPassword:       "PASSWORD",
	keyDevicesQty:     "DEVICES_QTY",
	keyGroupName:      "GROUP_NAME",
	keyDeploymentName: "DEPLOYMENT_NAME",
	keyArtifactName:   "ARTIFACT_NAME",
	keyDebug:          "DEBUG",
}

var cfg = newConfig()

// newConfig returns a viper instance reading MGMTCTL_* variables plus the
// legacy unprefixed names.
func newConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("mgmtctl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		_ = v.BindEnv(key, "MGMTCTL_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env)
	}
	return v
}

// bindFlags binds every flag of fs to the key of the same name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// applySettingsDefaults makes persistent settings the lowest-precedence
// source.
func applySettingsDefaults(v *viper.Viper, s *settings.Settings) {
	if s.ServerURL != "" {
		v.SetDefault(keyURL, s.ServerURL)
	}
	if s.Username != "" {
		v.SetDefault(keyUsername, s.Username)
	}
	if s.PerPage > 0 {
		v.SetDefault(keyPerPage, s.PerPage)
	}
	if s.Concurrency > 0 {
		v.SetDefault(keyConcurrency, s.Concurrency)
	}
	if s.Insecure {
		v.SetDefault(keyInsecure, true)
	}
	if s.ArtifactName != "" {
		v.SetDefault(keyArtifactName, s.ArtifactName)
	}
}

// connection is the resolved backend configuration of one invocation.
type connection struct {
	URL         string
	Username    string
	Password    string
	Insecure    bool
	Timeout     time.Duration
	Concurrency int
	Delay       time.Duration
	PerPage     int
}

// loadConnection resolves and validates the connection settings. It makes
// no network call.
func loadConnection(v *viper.Viper) (connection, error) {
	c := connection{
		URL:         strings.TrimSpace(v.GetString(keyURL)),
		Username:    strings.TrimSpace(v.GetString(keyUsername)),
		Password:    v.GetString(keyPassword),
		Insecure:    v.GetBool(keyInsecure),
		Timeout:     v.GetDuration(keyTimeout),
		Concurrency: v.GetInt(keyConcurrency),
		Delay:       v.GetDuration(keyDelay),
		PerPage:     v.GetInt(keyPerPage),
	}

	b := &util.ValidationBuilder{}
	b.Require("username (--username or USERNAME)", c.Username)
	b.Require("password (--password or PASSWORD)", c.Password)
	b.Require("url (--url or URL)", c.URL)
	b.Add(c.Concurrency >= 0, "concurrency must not be negative")
	b.Add(c.PerPage >= 0, "per-page must not be negative")
	if err := b.Build(); err != nil {
		return connection{}, err
	}
	return c, nil
}

// newRunner builds the client and workflow runner for c.
func newRunner(c connection) (*workflow.Runner, error) {
	client, err := api.New(api.Config{
		ServerURL:          c.URL,
		Username:           c.Username,
		Password:           c.Password,
		InsecureSkipVerify: c.Insecure,
		Timeout:            c.Timeout,
		Logger:             util.Logger,
	})
	if err != nil {
		return nil, err
	}
	return workflow.New(client, workflow.Options{
		Concurrency: c.Concurrency,
		Delay:       c.Delay,
		PageSize:    c.PerPage,
		Logger:      util.Logger,
	}), nil
}

// connect validates the configuration, logs in and returns a runner.
// Login failures surface here, before any workflow starts.
func connect(ctx context.Context) (*workflow.Runner, error) {
	c, err := loadConnection(cfg)
	if err != nil {
		return nil, err
	}
	r, err := newRunner(c)
	if err != nil {
		return nil, err
	}
	if err := r.Client().Session().Login(ctx); err != nil {
		return nil, fmt.Errorf("authenticating to %s: %w", r.Client().BaseURL(), err)
	}
	util.Debugf("Authenticated to %s as %s", r.Client().BaseURL(), c.Username)
	return r, nil
}
