package service

import (
	"context"
	"strings"
	"time"

	"linkshrink/pkg/keys"
	"linkshrink/pkg/logging"
	"linkshrink/pkg/policy"
	"linkshrink/pkg/storage"
)

// RiskChecker consults an external reputation service about a destination
// URL. It is best-effort: link creation never blocks on its availability.
type RiskChecker interface {
	IsRisky(ctx context.Context, longURL string) (bool, error)
}

// LinkService owns the canonical link records: creation with key generation,
// modification (including renames), deletion with cascade, lookup, and
// search.
type LinkService struct {
	storage storage.LinkStorage
	policy  *policy.Policy
	logger  *logging.Logger
	checker RiskChecker
	nowFunc func() time.Time
}

func NewLinkService(store storage.LinkStorage, pol *policy.Policy, logger *logging.Logger) *LinkService {
	return &LinkService{
		storage: store,
		policy:  pol,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// WithRiskChecker attaches an external URL reputation check to creation.
func (s *LinkService) WithRiskChecker(checker RiskChecker) *LinkService {
	s.checker = checker
	return s
}

type CreateLinkRequest struct {
	LongURL   string  `json:"long_url"`
	CustomKey *string `json:"custom_key,omitempty"`
	OwnerID   *string `json:"owner_id,omitempty"`
	Title     *string `json:"title,omitempty"`
}

type UpdateLinkRequest struct {
	LongURL string  `json:"long_url"`
	Title   *string `json:"title,omitempty"`
	NewKey  *string `json:"new_key,omitempty"`
}

// Create assigns a key to the destination and stores the link. The blocked
// domain check runs before anything else; a custom key must not be reserved
// and surfaces ErrDuplicateKey if taken, while generated keys retry
// transparently on collision.
func (s *LinkService) Create(ctx context.Context, req *CreateLinkRequest) (string, error) {
	longURL := QualifyURL(req.LongURL)
	if s.policy.IsDomainBlocked(longURL) {
		return "", ErrForbiddenDomain
	}
	if s.checker != nil {
		risky, err := s.checker.IsRisky(ctx, longURL)
		if err != nil {
			// Fail open: an unavailable reputation service must not take
			// down link creation.
			s.logger.Warn(ctx, "risk check unavailable", "error", err.Error())
		} else if risky {
			return "", ErrForbiddenDomain
		}
	}

	link := &storage.Link{
		LongURL:   longURL,
		Title:     req.Title,
		OwnerID:   req.OwnerID,
		CreatedAt: s.nowFunc(),
	}

	if req.CustomKey != nil {
		if s.policy.IsReserved(*req.CustomKey) {
			return "", ErrForbiddenName
		}
		link.Key = *req.CustomKey
		if err := s.storage.Create(ctx, link); err != nil {
			s.logger.LogLinkOperation(ctx, "create", link.Key, false)
			return "", err
		}
		s.logger.LogLinkOperation(ctx, "create", link.Key, true)
		return link.Key, nil
	}

	// Uniqueness is enforced by the key's unique index, not by a
	// check-then-act test: draw a candidate, attempt the insert, and retry
	// only when the insert loses to an existing key.
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		key, err := keys.Candidate()
		if err != nil {
			return "", err
		}
		if s.policy.IsReserved(key) {
			continue
		}
		link.Key = key
		err = s.storage.Create(ctx, link)
		if IsDuplicateKey(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		s.logger.LogLinkOperation(ctx, "create", key, true)
		return key, nil
	}
}

// Modify updates a link's fields. Renames are applied only for privileged
// requesters (admins and power users); for everyone else a requested key
// change is ignored, matching the modify contract. A rename moves the link
// and its visit events atomically.
func (s *LinkService) Modify(ctx context.Context, oldKey, requester string, req *UpdateLinkRequest) error {
	longURL := QualifyURL(req.LongURL)
	if s.policy.IsDomainBlocked(longURL) {
		return ErrForbiddenDomain
	}

	link, err := s.storage.GetByKey(ctx, oldKey)
	if err != nil {
		return err
	}
	if link == nil {
		return ErrNotFound
	}
	if !s.isOwnerOrAdmin(link, requester) && !s.policy.IsPowerUser(requester) {
		return ErrNotAuthorized
	}

	newKey := req.NewKey
	if !s.policy.IsPrivileged(requester) {
		newKey = nil
	}

	if newKey != nil && *newKey != oldKey {
		if s.policy.IsReserved(*newKey) {
			return ErrForbiddenName
		}
		if err := s.storage.Rename(ctx, oldKey, *newKey); err != nil {
			return err
		}
		link.Key = *newKey
	}

	link.LongURL = longURL
	if req.Title != nil {
		link.Title = req.Title
	}
	if err := s.storage.Update(ctx, link); err != nil {
		return err
	}
	s.logger.LogLinkOperation(ctx, "modify", link.Key, true)
	return nil
}

// Delete removes a link and all its visit events. Only the owner or an
// admin may delete.
func (s *LinkService) Delete(ctx context.Context, key, requester string) (storage.DeleteResult, error) {
	link, err := s.storage.GetByKey(ctx, key)
	if err != nil {
		return storage.DeleteResult{}, err
	}
	if link == nil {
		return storage.DeleteResult{}, ErrNotFound
	}
	if !s.isOwnerOrAdmin(link, requester) {
		return storage.DeleteResult{}, ErrNotAuthorized
	}

	res, err := s.storage.Delete(ctx, key)
	if err != nil {
		s.logger.LogLinkOperation(ctx, "delete", key, false)
		return res, err
	}
	s.logger.LogLinkOperation(ctx, "delete", key, true)
	return res, nil
}

// DeleteByOwner removes every link belonging to one owner, events included.
// Only the owner themselves or an administrator may do this.
func (s *LinkService) DeleteByOwner(ctx context.Context, ownerID, requester string) (storage.DeleteResult, error) {
	if ownerID == "" {
		return storage.DeleteResult{}, nil
	}
	if requester != ownerID && !s.policy.IsAdmin(requester) {
		return storage.DeleteResult{}, ErrNotAuthorized
	}
	return s.storage.DeleteByOwner(ctx, ownerID)
}

// Lookup returns the link for a key.
func (s *LinkService) Lookup(ctx context.Context, key string) (*storage.Link, error) {
	link, err := s.storage.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// Search runs a paginated link search.
func (s *LinkService) Search(ctx context.Context, q storage.SearchQuery) (storage.SearchResults, error) {
	return s.storage.Search(ctx, q)
}

// Count returns the number of links, globally or for one owner.
func (s *LinkService) Count(ctx context.Context, ownerID string) (int64, error) {
	return s.storage.Count(ctx, ownerID)
}

// IsOwnerOrAdmin reports whether the requester may mutate the given key.
// A missing link falls back to the admin check alone.
func (s *LinkService) IsOwnerOrAdmin(ctx context.Context, key, requester string) (bool, error) {
	link, err := s.storage.GetByKey(ctx, key)
	if err != nil {
		return false, err
	}
	if link == nil {
		return s.policy.IsAdmin(requester), nil
	}
	return s.isOwnerOrAdmin(link, requester), nil
}

func (s *LinkService) isOwnerOrAdmin(link *storage.Link, requester string) bool {
	if link.OwnerID != nil && *link.OwnerID == requester {
		return true
	}
	return s.policy.IsAdmin(requester)
}

// QualifyURL ensures the destination is protocol-qualified before storage.
func QualifyURL(longURL string) string {
	if strings.Contains(longURL, "://") {
		return longURL
	}
	return "https://" + longURL
}
