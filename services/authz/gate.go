package authz

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"taskora/pkg/config"
	"taskora/pkg/identity"
	"taskora/pkg/logger"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SubjectReviewer  = "reviewer"
	SubjectMember    = "member"
	SubjectAnonymous = "anonymous"

	ObjectSubmission = "submission"
	ObjectProof      = "proof"
	ObjectLedger     = "ledger"

	ActionCreate      = "create"
	ActionListOwn     = "list_own"
	ActionReview      = "review"
	ActionListPending = "list_pending"
	ActionRead        = "read"
	ActionReadOwn     = "read_own"
)

var (
	//go:embed model.conf
	defaultModel string

	//go:embed policy.csv
	defaultPolicy string
)

// Gate decides whether a caller may perform a privileged action. Decisions are pure:
// nothing is written and a false answer is final.
type Gate interface {
	CanReview(ctx context.Context, caller identity.Identity) (bool, error)
	CanListPending(ctx context.Context, caller identity.Identity) (bool, error)
	CanReadProof(ctx context.Context, caller identity.Identity) (bool, error)
}

type CasbinGate struct {
	enforcer *casbin.SyncedEnforcer
}

type GateParams struct {
	fx.In
	Config *config.Config
}

func NewGate(p GateParams) (*CasbinGate, error) {
	return NewCasbinGate(p.Config.AccessControl.Model, p.Config.AccessControl.Policy)
}

// NewCasbinGate loads the model and policy from files when paths are given and
// falls back to the embedded defaults otherwise.
func NewCasbinGate(modelPath, policyPath string) (*CasbinGate, error) {
	var (
		m   model.Model
		err error
	)
	if modelPath != "" {
		m, err = model.NewModelFromFile(modelPath)
	} else {
		m, err = model.NewModelFromString(defaultModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load access control model: %w", err)
	}

	if policyPath != "" {
		e, err := casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(policyPath))
		if err != nil {
			return nil, fmt.Errorf("load access control policy: %w", err)
		}
		return &CasbinGate{enforcer: e}, nil
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("init access control enforcer: %w", err)
	}
	if err := loadPolicy(e, defaultPolicy); err != nil {
		return nil, err
	}
	return &CasbinGate{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, csv string) error {
	var (
		policies [][]string
		groups   [][]string
	)
	for _, line := range strings.Split(csv, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		switch fields[0] {
		case "p":
			policies = append(policies, fields[1:])
		case "g":
			groups = append(groups, fields[1:])
		default:
			return fmt.Errorf("unknown policy type %q", fields[0])
		}
	}

	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			return fmt.Errorf("add policies: %w", err)
		}
	}
	if len(groups) > 0 {
		if _, err := e.AddGroupingPolicies(groups); err != nil {
			return fmt.Errorf("add grouping policies: %w", err)
		}
	}
	return nil
}

// Subject maps an identity to the role the policy is written against.
func Subject(caller identity.Identity) string {
	switch {
	case !caller.Authenticated():
		return SubjectAnonymous
	case caller.IsReviewer:
		return SubjectReviewer
	default:
		return SubjectMember
	}
}

func (g *CasbinGate) CanReview(ctx context.Context, caller identity.Identity) (bool, error) {
	return g.enforce(ctx, caller, ObjectSubmission, ActionReview)
}

func (g *CasbinGate) CanListPending(ctx context.Context, caller identity.Identity) (bool, error) {
	return g.enforce(ctx, caller, ObjectSubmission, ActionListPending)
}

func (g *CasbinGate) CanReadProof(ctx context.Context, caller identity.Identity) (bool, error) {
	return g.enforce(ctx, caller, ObjectProof, ActionRead)
}

func (g *CasbinGate) enforce(ctx context.Context, caller identity.Identity, obj, act string) (bool, error) {
	sub := Subject(caller)
	ok, err := g.enforcer.Enforce(sub, obj, act)
	if err != nil {
		logger.FromContext(ctx).Error("access control evaluation failed",
			zap.String("subject", sub), zap.String("object", obj), zap.String("action", act), zap.Error(err))
		return false, err
	}

	if !ok {
		logger.FromContext(ctx).Debug("access denied",
			zap.String("user_id", caller.UserID), zap.String("subject", sub),
			zap.String("object", obj), zap.String("action", act))
	}
	return ok, nil
}
