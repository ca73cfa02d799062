// Package validation runs the ordered identity checks a login must pass
// before any account is looked up.
package validation

import (
	"github.com/asaskevich/govalidator"

	"github.com/tendant/simple-sso/pkg/claims"
	"github.com/tendant/simple-sso/pkg/realm"
	"github.com/tendant/simple-sso/pkg/reason"
)

// Rule names, in pipeline order.
const (
	RuleHasSubjectID                = "HasSubjectId"
	RuleHasValidEmail               = "HasValidEmail"
	RuleIsMemberOfRequiredGroup     = "IsMemberOfRequiredGroup"
	RuleIsMemberOfAllowedSubsection = "IsMemberOfAllowedSubsection"
)

// Rule is a single pure precondition on identity claims.
type Rule struct {
	Name   string
	Reason reason.Reason
	Check  func(c *claims.IdentityClaims, p realm.Policy) bool
}

// Result is the outcome of running the pipeline. FailedRule and Reason are
// set only when OK is false.
type Result struct {
	OK         bool
	FailedRule string
	Reason     reason.Reason
}

// Pipeline is an ordered, fail-fast list of rules.
type Pipeline struct {
	rules []Rule
}

// NewPipeline returns the standard pipeline. The rule order is fixed: the
// first failing rule decides the user-facing message.
func NewPipeline() *Pipeline {
	return &Pipeline{rules: []Rule{
		{Name: RuleHasSubjectID, Reason: reason.InvalidSubjectId, Check: HasSubjectID},
		{Name: RuleHasValidEmail, Reason: reason.InvalidEmail, Check: HasValidEmail},
		{Name: RuleIsMemberOfRequiredGroup, Reason: reason.NotRequiredGroupMember, Check: IsMemberOfRequiredGroup},
		{Name: RuleIsMemberOfAllowedSubsection, Reason: reason.NotAllowedSubsectionMember, Check: IsMemberOfAllowedSubsection},
	}}
}

// Rules returns a copy of the rules in evaluation order.
func (p *Pipeline) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Validate runs the rules in order and stops at the first failure.
func (p *Pipeline) Validate(c *claims.IdentityClaims, policy realm.Policy) Result {
	for _, r := range p.rules {
		if !r.Check(c, policy) {
			return Result{OK: false, FailedRule: r.Name, Reason: r.Reason}
		}
	}
	return Result{OK: true}
}

// HasSubjectID requires a non-empty provider subject.
func HasSubjectID(c *claims.IdentityClaims, _ realm.Policy) bool {
	return c.HasSubject()
}

// HasValidEmail requires a syntactically valid email, for every realm.
func HasValidEmail(c *claims.IdentityClaims, _ realm.Policy) bool {
	if c == nil || c.Email == "" {
		return false
	}
	return govalidator.IsEmail(c.Email)
}

// IsMemberOfRequiredGroup passes when the policy does not require group
// membership, or when a parsed group id is on the allow-list.
func IsMemberOfRequiredGroup(c *claims.IdentityClaims, p realm.Policy) bool {
	if !p.RequireGroupMembership {
		return true
	}
	if c == nil {
		return false
	}
	return Intersects(ParseGroupIDs(c.Roles, p.GroupPrefix), p.GroupAllowList)
}

// IsMemberOfAllowedSubsection is the narrower second check against the
// subsection allow-list.
func IsMemberOfAllowedSubsection(c *claims.IdentityClaims, p realm.Policy) bool {
	if !p.RequireSubsectionMembership {
		return true
	}
	if c == nil {
		return false
	}
	return Intersects(ParseGroupIDs(c.Roles, p.SubsectionPrefix), p.SubsectionAllowList)
}
