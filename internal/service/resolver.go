package service

import (
	"context"
	"fmt"

	"github.com/haakonmt/girobatch/internal/kid"
	"github.com/haakonmt/girobatch/internal/observability"
)

// Payment is a money movement from a channel without a structured KID
// field, described only by its free text and point of sale.
type Payment struct {
	Message  string
	Location string
}

// Resolver attempts to bind a KID-less payment to an identifier.
type Resolver interface {
	Resolve(ctx context.Context, p Payment) (string, bool, error)
}

// ChecksumResolver extracts a checksum-valid identifier from the
// payment's free text.
type ChecksumResolver struct{}

func (ChecksumResolver) Resolve(ctx context.Context, p Payment) (string, bool, error) {
	found, ok := kid.Extract(p.Message)
	return found, ok, nil
}

// RuleResolver consults merchant-defined matching rules: a rule matches
// on sales-location equality or message equality and yields its
// configured fallback identifier.
type RuleResolver struct {
	rules RuleStore
}

func NewRuleResolver(rules RuleStore) *RuleResolver {
	return &RuleResolver{rules: rules}
}

func (r *RuleResolver) Resolve(ctx context.Context, p Payment) (string, bool, error) {
	rules, err := r.rules.ListMatchRules(ctx)
	if err != nil {
		return "", false, fmt.Errorf("load match rules: %w", err)
	}
	for _, rule := range rules {
		if rule.Location != "" && rule.Location == p.Location {
			return rule.ResolveKID, true, nil
		}
		if rule.Message != "" && rule.Message == p.Message {
			return rule.ResolveKID, true, nil
		}
	}
	return "", false, nil
}

// ResolverChain tries each resolver in order and stops at the first
// match. A payment no resolver matches is reported unmatched, never
// silently dropped.
type ResolverChain []Resolver

// NewResolverChain builds the default chain: checksum extraction first,
// then the rule table.
func NewResolverChain(rules RuleStore) ResolverChain {
	return ResolverChain{ChecksumResolver{}, NewRuleResolver(rules)}
}

func (c ResolverChain) Resolve(ctx context.Context, p Payment) (string, bool, error) {
	for _, r := range c {
		found, ok, err := r.Resolve(ctx, p)
		if err != nil {
			return "", false, err
		}
		if ok {
			return found, true, nil
		}
	}
	observability.IncrementUnmatchedPayment()
	return "", false, nil
}
