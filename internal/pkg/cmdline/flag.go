// Package cmdline is a trimmed adaptation of the teacher's
// pkg/cmdline.flagManager (vzokay-apptainer/pkg/cmdline/flag.go): the
// same Flag/flagManager shape and env-var-annotation registration
// pattern, cut down to the value types this CLI actually needs
// (string, bool, []string) and a single APPBOX_ env prefix in place of
// apptainer's APPTAINER_/SINGULARITY_ precedence cascade.
package cmdline

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/appbox/launcher/internal/pkg/sylog"
)

// EnvHandler applies an environment-sourced value to a registered flag.
type EnvHandler func(flag *pflag.Flag, value string) error

// EnvSetValue is the default EnvHandler: defers to pflag's own string
// parsing via the flag's Value.Set.
func EnvSetValue(flag *pflag.Flag, value string) error {
	return flag.Value.Set(value)
}

// Flag holds one command flag's registration metadata, including the
// environment variable names it may also be set from.
type Flag struct {
	ID           string
	Value        interface{}
	DefaultValue interface{}
	Name         string
	ShortHand    string
	Usage        string
	Hidden       bool
	Required     bool
	EnvKeys      []string
	EnvHandler   EnvHandler
}

// Manager manages cobra command flags, keyed by Flag.ID so environment
// resolution can look a flag back up from its annotation.
type Manager struct {
	flags map[string]*Flag
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{flags: make(map[string]*Flag)}
}

func (m *Manager) setFlagOptions(flag *Flag, cmd *cobra.Command) {
	cmd.Flags().SetAnnotation(flag.Name, "ID", []string{flag.ID})
	if len(flag.EnvKeys) > 0 {
		cmd.Flags().SetAnnotation(flag.Name, "envkey", flag.EnvKeys)
	}
	if flag.Hidden {
		cmd.Flags().MarkHidden(flag.Name)
	}
	if flag.Required {
		cmd.MarkFlagRequired(flag.Name)
	}
}

// RegisterFlagForCmd registers flag against every command in cmds,
// dispatching on the concrete type of flag.DefaultValue.
func (m *Manager) RegisterFlagForCmd(flag *Flag, cmds ...*cobra.Command) error {
	for _, c := range cmds {
		if c == nil {
			return fmt.Errorf("nil command provided")
		}
	}
	if flag == nil {
		return fmt.Errorf("nil flag provided")
	}
	if flag.EnvHandler == nil {
		flag.EnvHandler = EnvSetValue
	}

	switch flag.DefaultValue.(type) {
	case string:
		m.registerStringVar(flag, cmds)
	case bool:
		m.registerBoolVar(flag, cmds)
	case []string:
		m.registerStringSliceVar(flag, cmds)
	default:
		return fmt.Errorf("flag %s of type %T is not supported", flag.Name, flag.DefaultValue)
	}
	m.flags[flag.ID] = flag
	return nil
}

func (m *Manager) registerStringVar(flag *Flag, cmds []*cobra.Command) {
	for _, c := range cmds {
		if flag.ShortHand != "" {
			c.Flags().StringVarP(flag.Value.(*string), flag.Name, flag.ShortHand, flag.DefaultValue.(string), flag.Usage)
		} else {
			c.Flags().StringVar(flag.Value.(*string), flag.Name, flag.DefaultValue.(string), flag.Usage)
		}
		m.setFlagOptions(flag, c)
	}
}

func (m *Manager) registerBoolVar(flag *Flag, cmds []*cobra.Command) {
	for _, c := range cmds {
		if flag.ShortHand != "" {
			c.Flags().BoolVarP(flag.Value.(*bool), flag.Name, flag.ShortHand, flag.DefaultValue.(bool), flag.Usage)
		} else {
			c.Flags().BoolVar(flag.Value.(*bool), flag.Name, flag.DefaultValue.(bool), flag.Usage)
		}
		m.setFlagOptions(flag, c)
	}
}

func (m *Manager) registerStringSliceVar(flag *Flag, cmds []*cobra.Command) {
	for _, c := range cmds {
		if flag.ShortHand != "" {
			c.Flags().StringSliceVarP(flag.Value.(*[]string), flag.Name, flag.ShortHand, flag.DefaultValue.([]string), flag.Usage)
		} else {
			c.Flags().StringSliceVar(flag.Value.(*[]string), flag.Name, flag.DefaultValue.([]string), flag.Usage)
		}
		m.setFlagOptions(flag, c)
	}
}

// envPrefix is the single prefix every env-sourced flag value is looked
// up under, replacing the teacher's multi-prefix precedence cascade
// (this CLI has no legacy alternate-prefix compatibility concern).
const envPrefix = "APPBOX_"

// UpdateCmdFlagFromEnv applies APPBOX_<KEY> environment overrides to any
// flag on cmd that declared EnvKeys, visiting flags in the order
// pflag's VisitAll uses (sorted by flag name by default).
func (m *Manager) UpdateCmdFlagFromEnv(cmd *cobra.Command) error {
	var errs []error

	cmd.Flags().VisitAll(func(pf *pflag.Flag) {
		envKeys, ok := pf.Annotations["envkey"]
		if !ok {
			return
		}
		id, ok := pf.Annotations["ID"]
		if !ok {
			return
		}
		mflag, ok := m.flags[id[0]]
		if !ok {
			return
		}
		for _, key := range envKeys {
			val, set := os.LookupEnv(envPrefix + key)
			if !set {
				continue
			}
			if err := mflag.EnvHandler(pf, val); err != nil {
				errs = append(errs, err)
			}
		}
	})

	if len(errs) > 0 {
		sylog.Warningf("%d flag(s) failed to apply from environment", len(errs))
		return errs[0]
	}
	return nil
}
