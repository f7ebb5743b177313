package verify

import (
	"context"
	"errors"

	"remedia/internal/audit"
	"remedia/internal/identity"
	"remedia/internal/verify/linktoken"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/sentinel"
)

// resendable lists the statuses from which a fresh verification link may be
// sent out.
var resendable = map[identity.Status]bool{
	identity.StatusPending:            true,
	identity.StatusLinkSent:           true,
	identity.StatusEmailSent:          true,
	identity.StatusVerificationFailed: true,
	identity.StatusLinkExpired:        true,
}

// SendLink issues the first verification link for a pending entry and moves
// it to link_sent.
func (s *Service) SendLink(ctx context.Context, entryID string, actor audit.Actor) (identity.Entry, linktoken.IssuedLink, error) {
	return s.issueLink(ctx, entryID, identity.StatusLinkSent, actor, false)
}

// Resend issues a replacement link, bumps the resend counter and moves the
// entry to email_sent. The previous link is revoked by the issuer.
func (s *Service) Resend(ctx context.Context, entryID string, actor audit.Actor) (identity.Entry, linktoken.IssuedLink, error) {
	return s.issueLink(ctx, entryID, identity.StatusEmailSent, actor, true)
}

func (s *Service) issueLink(ctx context.Context, entryID string, to identity.Status, actor audit.Actor, resend bool) (identity.Entry, linktoken.IssuedLink, error) {
	if s.links == nil {
		return identity.Entry{}, linktoken.IssuedLink{}, dErrors.New(dErrors.CodeUnavailable, "link issuing is not configured")
	}
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Entry{}, linktoken.IssuedLink{}, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return identity.Entry{}, linktoken.IssuedLink{}, dErrors.Wrap(err, dErrors.CodeInternal, "load entry")
	}
	if resend && !resendable[entry.Status] {
		return identity.Entry{}, linktoken.IssuedLink{}, dErrors.New(dErrors.CodeConflict, "entry is not eligible for a resend")
	}

	link, err := s.links.Issue(ctx, entry.ID)
	if err != nil {
		return identity.Entry{}, linktoken.IssuedLink{}, err
	}

	if entry.Status != to {
		if err := entry.Transition(to); err != nil {
			return identity.Entry{}, linktoken.IssuedLink{}, err
		}
	}
	if resend {
		entry.ResendCount++
	}
	entry.UpdatedAt = s.clock()
	if err := s.entries.Update(ctx, entry); err != nil {
		return identity.Entry{}, linktoken.IssuedLink{}, dErrors.Wrap(err, dErrors.CodeInternal, "update entry")
	}

	result := "link_sent"
	if resend {
		result = "link_resent"
	}
	s.audit(ctx, actor, result, "", nil, map[string]any{
		"entryId":     entry.ID,
		"resendCount": entry.ResendCount,
	})
	return entry, link, nil
}

// RedeemLink exchanges a link token and its secret for the entry it was
// issued to, and runs verification immediately. An expired token moves the
// entry to link_expired so a resend can follow.
func (s *Service) RedeemLink(ctx context.Context, token, secret string) (identity.Entry, error) {
	if s.links == nil {
		return identity.Entry{}, dErrors.New(dErrors.CodeUnavailable, "link issuing is not configured")
	}
	entryID, err := s.links.Redeem(ctx, token, secret)
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			s.expireEntry(ctx, entryID)
		}
		return identity.Entry{}, err
	}

	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return identity.Entry{}, dErrors.New(dErrors.CodeNotFound, "entry not found")
		}
		return identity.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "load entry")
	}

	updated, outcome, _ := s.verifyOne(ctx, entry, audit.Actor{ID: entry.ID, Email: entry.Email, Type: "customer"})
	if outcome == OutcomeSkipped {
		return updated, dErrors.New(dErrors.CodeConflict, "entry is not eligible for verification")
	}
	return updated, nil
}

func (s *Service) expireEntry(ctx context.Context, entryID string) {
	if entryID == "" {
		return
	}
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return
	}
	if err := entry.Transition(identity.StatusLinkExpired); err != nil {
		return
	}
	entry.UpdatedAt = s.clock()
	if err := s.entries.Update(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "entry update failed", "entry_id", entry.ID, "error", err)
	}
}
