package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanPolicy describes per-plan licensing defaults.
type PlanPolicy struct {
	MaxActivations          int `mapstructure:"max_activations"`
	ValidationIntervalHours int `mapstructure:"validation_interval_hours"`
}

// Policy is the full plan catalog loaded from policy.yml.
type Policy struct {
	Plans map[string]PlanPolicy `mapstructure:"plans"`
}

func DefaultPolicy() Policy {
	return Policy{
		Plans: map[string]PlanPolicy{
			"pro":  {MaxActivations: 1, ValidationIntervalHours: 24},
			"team": {MaxActivations: 5, ValidationIntervalHours: 24},
		},
	}
}

// PolicyHolder serves the current plan policy and hot-reloads it when the
// backing file changes.
type PolicyHolder struct {
	current atomic.Value // holds Policy
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/keyline/config")
	v.AddConfigPath("/etc/keyline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KEYLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &PolicyHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultPolicy())
		return holder, nil
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(policy)

	v.OnConfigChange(func(_ fsnotify.Event) {
		reloaded, err := decodePolicy(v)
		if err != nil {
			log.Printf("policy reload failed: %v", err)
			return
		}
		holder.current.Store(reloaded)
	})
	v.WatchConfig()

	return holder, nil
}

// NewStaticPolicyHolder pins a fixed policy with no file watching.
func NewStaticPolicyHolder(policy Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

// Current returns the latest policy snapshot.
func (h *PolicyHolder) Current() Policy {
	if policy, ok := h.current.Load().(Policy); ok {
		return policy
	}
	return DefaultPolicy()
}

// PlanDefaults returns the policy for a plan, falling back to a single
// activation slot for plans absent from the catalog.
func (h *PolicyHolder) PlanDefaults(plan string) PlanPolicy {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if policy, ok := h.Current().Plans[plan]; ok {
		return policy
	}
	return PlanPolicy{MaxActivations: 1, ValidationIntervalHours: 24}
}

func decodePolicy(v *viper.Viper) (Policy, error) {
	policy := Policy{}
	if err := v.Unmarshal(&policy); err != nil {
		return Policy{}, err
	}
	if len(policy.Plans) == 0 {
		policy = DefaultPolicy()
	}
	return policy, nil
}
