package quota

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the read-only configuration of one tier.
type Policy struct {
	CleaningsPerPeriod int  `yaml:"cleanings_per_period"` // Unlimited for no cap
	MaxFileSizeMB      int  `yaml:"max_file_size_mb"`
	AIAllowed          bool `yaml:"ai_allowed"`
}

// MaxFileBytes returns the file size limit in bytes.
func (p Policy) MaxFileBytes() int64 {
	return int64(p.MaxFileSizeMB) * 1024 * 1024
}

// Unlimited reports whether the tier has no cleaning cap.
func (p Policy) Unlimited() bool { return p.CleaningsPerPeriod < 0 }

func (p Policy) validate() error {
	if p.CleaningsPerPeriod < Unlimited {
		return fmt.Errorf("cleanings_per_period must be %d (unlimited) or more", Unlimited)
	}
	if p.MaxFileSizeMB <= 0 {
		return errors.New("max_file_size_mb must be positive")
	}
	return nil
}

// Policies maps every tier to its policy.
type Policies map[Tier]Policy

// DefaultPolicies returns the built-in tier policies.
func DefaultPolicies() Policies {
	return Policies{
		TierAnonymous:  {CleaningsPerPeriod: 3, MaxFileSizeMB: 10, AIAllowed: true},
		TierFree:       {CleaningsPerPeriod: 10, MaxFileSizeMB: 25, AIAllowed: false},
		TierPro:        {CleaningsPerPeriod: 500, MaxFileSizeMB: 100, AIAllowed: true},
		TierEnterprise: {CleaningsPerPeriod: Unlimited, MaxFileSizeMB: 500, AIAllowed: true},
	}
}

// Lookup returns the policy for a tier.
func (p Policies) Lookup(t Tier) (Policy, error) {
	policy, ok := p[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return policy, nil
}

// policyFile is the YAML layout:
//
//	tiers:
//	  anonymous:
//	    cleanings_per_period: 3
//	    max_file_size_mb: 10
//	    ai_allowed: true
type policyFile struct {
	Tiers map[string]yaml.Node `yaml:"tiers"`
}

// LoadPolicies reads tier policies from a YAML file. Tiers the file does
// not mention keep their defaults. An empty path returns the defaults.
func LoadPolicies(path string) (Policies, error) {
	if path == "" {
		return DefaultPolicies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	policies, err := ParsePolicies(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return policies, nil
}

// ParsePolicies parses YAML policy overrides on top of the defaults. A tier
// entry may set only some fields; the rest keep the tier's default.
func ParsePolicies(data []byte) (Policies, error) {
	var file policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policies: %w", err)
	}

	policies := DefaultPolicies()
	var errs []error
	for name, node := range file.Tiers {
		tier, err := ParseTier(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		policy := policies[tier]
		if err := decodeStrict(&node, &policy); err != nil {
			errs = append(errs, fmt.Errorf("tier %s: %w", tier, err))
			continue
		}
		if err := policy.validate(); err != nil {
			errs = append(errs, fmt.Errorf("tier %s: %w", tier, err))
			continue
		}
		policies[tier] = policy
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return policies, nil
}

// decodeStrict decodes node into v, rejecting keys v has no field for.
// yaml.Node.Decode does not honour KnownFields, so the node is re-encoded
// and read back through a strict decoder.
func decodeStrict(node *yaml.Node, v any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(v)
}
