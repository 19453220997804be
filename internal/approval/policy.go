// Package approval implements the leave approval chain: the role policy that derives a
// chain, the engine that advances it, and the read-only projections computed from it.
package approval

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

// ChainPolicy maps a requester role to the ordered approver roles of its chain.
type ChainPolicy struct {
	chains map[models.Role][]models.Role
}

// DefaultPolicy returns the organisation's standard chains.
func DefaultPolicy() *ChainPolicy {
	return &ChainPolicy{chains: map[models.Role][]models.Role{
		models.RoleOperator: {
			models.RoleReliever,
			models.RoleTeamLeader,
			models.RoleIncharge,
			models.RoleProjectManager,
		},
		models.RoleTeamLeader: {
			models.RoleReliever,
			models.RoleIncharge,
			models.RoleProjectManager,
		},
		models.RoleIncharge: {
			models.RoleReliever,
			models.RoleProjectManager,
		},
	}}
}

// NewPolicy validates and builds a policy from explicit chains.
func NewPolicy(chains map[models.Role][]models.Role) (*ChainPolicy, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("chain policy defines no chains")
	}
	copied := make(map[models.Role][]models.Role, len(chains))
	for requester, chain := range chains {
		if !requester.Valid() {
			return nil, fmt.Errorf("unknown requester role %q", requester)
		}
		if requester == models.RoleProjectManager || requester == models.RoleReliever {
			return nil, fmt.Errorf("role %q cannot submit leave requests", requester)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("chain for %q is empty", requester)
		}
		for _, approver := range chain {
			if !approver.Valid() {
				return nil, fmt.Errorf("chain for %q has unknown approver role %q", requester, approver)
			}
		}
		copied[requester] = append([]models.Role(nil), chain...)
	}
	return &ChainPolicy{chains: copied}, nil
}

// ChainFor returns the approver roles for a requester. An empty result means the role
// cannot submit requests.
func (p *ChainPolicy) ChainFor(role models.Role) []models.Role {
	if p == nil {
		return nil
	}
	chain := p.chains[role]
	if len(chain) == 0 {
		return nil
	}
	return append([]models.Role(nil), chain...)
}

// CanSubmit reports whether the role has a configured chain.
func (p *ChainPolicy) CanSubmit(role models.Role) bool {
	return len(p.ChainFor(role)) > 0
}

// SubmittingRoles lists roles with a configured chain, in display order.
func (p *ChainPolicy) SubmittingRoles() []models.Role {
	if p == nil {
		return nil
	}
	roles := make([]models.Role, 0, len(p.chains))
	for role := range p.chains {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		return roleRank(roles[i]) < roleRank(roles[j])
	})
	return roles
}

type policyFile struct {
	Chains map[string][]string `yaml:"chains"`
}

// LoadPolicyFile reads a YAML chain policy of the form:
//
//	chains:
//	  EME Operator: [Reliever, Team Leader, Incharge, Project Manager]
func LoadPolicyFile(path string) (*ChainPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain policy: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes a YAML chain policy document.
func ParsePolicy(raw []byte) (*ChainPolicy, error) {
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode chain policy: %w", err)
	}
	chains := make(map[models.Role][]models.Role, len(doc.Chains))
	for rawRequester, rawChain := range doc.Chains {
		requester, ok := models.ParseRole(rawRequester)
		if !ok {
			return nil, fmt.Errorf("unknown requester role %q", rawRequester)
		}
		chain := make([]models.Role, 0, len(rawChain))
		for _, rawApprover := range rawChain {
			approver, ok := models.ParseRole(rawApprover)
			if !ok {
				return nil, fmt.Errorf("chain for %q has unknown approver role %q", rawRequester, rawApprover)
			}
			chain = append(chain, approver)
		}
		chains[requester] = chain
	}
	return NewPolicy(chains)
}

func roleRank(role models.Role) int {
	for i, r := range models.Roles {
		if r == role {
			return i
		}
	}
	return len(models.Roles)
}
