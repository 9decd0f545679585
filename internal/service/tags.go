package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/macthinh22/my-knowledge-app/internal/logger"
	"github.com/macthinh22/my-knowledge-app/internal/repository"
	"gorm.io/gorm"
)

// NormalizeTag trims, lowercases and collapses internal whitespace.
func NormalizeTag(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// NormalizeKeywords normalizes each tag, drops empties and removes
// duplicates, keeping the first occurrence.
func NormalizeKeywords(keywords []string) []string {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		tag := NormalizeTag(kw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	return normalized
}

// CanonicalizeKeywords normalizes keywords and replaces aliases with their
// canonical tag. The result is itself normalized and free of duplicates.
func CanonicalizeKeywords(keywords []string, aliases map[string]string) []string {
	normalized := NormalizeKeywords(keywords)
	if len(aliases) == 0 {
		return normalized
	}
	for i, tag := range normalized {
		normalized[i] = resolveTag(tag, aliases)
	}
	return NormalizeKeywords(normalized)
}

// resolveTag follows alias links until it reaches a tag that is not an alias.
func resolveTag(tag string, aliases map[string]string) string {
	for i := 0; i <= len(aliases); i++ {
		next, ok := aliases[tag]
		if !ok || next == tag {
			return tag
		}
		tag = next
	}
	return tag
}

// TagService owns the tag registry: canonicalization on write and the
// rename, merge and delete maintenance operations.
type TagService struct {
	db      *gorm.DB
	videos  *repository.VideoRepository
	aliases *repository.TagAliasRepository

	// mu serializes registry mutations within the process; each one also
	// runs in a single transaction.
	mu sync.Mutex
}

// NewTagService creates a new tag service.
// Parameters:
//   - db: database handle used to open transactions.
//   - videos: video repository.
//   - aliases: alias repository.
//
// Returns:
//   - *TagService: initialized service.
func NewTagService(db *gorm.DB, videos *repository.VideoRepository, aliases *repository.TagAliasRepository) *TagService {
	return &TagService{db: db, videos: videos, aliases: aliases}
}

// Canonicalize applies the current alias table to keywords.
func (s *TagService) Canonicalize(ctx context.Context, keywords []string) ([]string, error) {
	m, err := s.aliases.Map(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tag aliases: %w", err)
	}
	return CanonicalizeKeywords(keywords, m), nil
}

// Summary returns every tag in use with its usage count, last use and aliases.
func (s *TagService) Summary(ctx context.Context) ([]domain.TagSummary, error) {
	return summarize(ctx, s.videos, s.aliases)
}

// ListAliases returns all alias rows ordered by alias.
func (s *TagService) ListAliases(ctx context.Context) ([]domain.TagAlias, error) {
	return s.aliases.List(ctx)
}

// CreateAlias points alias at canonical. Existing videos are not rewritten
// here; the next rename, merge or delete re-canonicalizes every video.
func (s *TagService) CreateAlias(ctx context.Context, alias, canonical string) (*domain.TagAlias, error) {
	alias, canonical = NormalizeTag(alias), NormalizeTag(canonical)
	if alias == "" || canonical == "" {
		return nil, fmt.Errorf("%w: alias and canonical tag are required", domain.ErrInvalidInput)
	}
	if alias == canonical {
		return nil, fmt.Errorf("%w: alias and canonical tag cannot be the same", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var row *domain.TagAlias
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		aliases := s.aliases.WithTx(tx)
		m, err := aliases.Map(ctx)
		if err != nil {
			return err
		}
		if row, err = link(ctx, aliases, m, alias, canonical); err != nil {
			return err
		}
		return aliases.DeleteDegenerate(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("create tag alias: %w", err)
	}

	logger.CtxInfo(ctx, "Tag alias %q -> %q saved", row.Alias, row.Canonical)
	return row, nil
}

// DeleteAlias removes an alias row if present.
func (s *TagService) DeleteAlias(ctx context.Context, alias string) error {
	alias = NormalizeTag(alias)
	if alias == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases.DeleteByAlias(ctx, alias)
}

// Rename replaces from with to on every video and records from as an alias.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - from: tag to rename.
//   - to: new tag name.
//
// Returns:
//   - []domain.TagSummary: tag summary after the change.
//   - error: domain.ErrInvalidInput when either tag is empty.
func (s *TagService) Rename(ctx context.Context, from, to string) ([]domain.TagSummary, error) {
	from, to = NormalizeTag(from), NormalizeTag(to)
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: both from_tag and to_tag are required", domain.ErrInvalidInput)
	}
	if from == to {
		return s.Summary(ctx)
	}

	return s.mutate(ctx, "rename", func(ctx context.Context, videos *repository.VideoRepository, aliases *repository.TagAliasRepository, m map[string]string) error {
		row, err := link(ctx, aliases, m, from, to)
		if err != nil {
			return err
		}
		target := row.Canonical
		return rewriteKeywords(ctx, videos, m, func(tag string) string {
			if tag == from {
				return target
			}
			return tag
		})
	})
}

// Merge folds every source tag into target.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sources: tags to fold; empties and target itself are ignored.
//   - target: tag that survives.
//
// Returns:
//   - []domain.TagSummary: tag summary after the change.
//   - error: domain.ErrInvalidInput when target or every source is empty.
func (s *TagService) Merge(ctx context.Context, sources []string, target string) ([]domain.TagSummary, error) {
	target = NormalizeTag(target)
	srcs := make([]string, 0, len(sources))
	for _, src := range NormalizeKeywords(sources) {
		if src != target {
			srcs = append(srcs, src)
		}
	}
	if target == "" || len(srcs) == 0 {
		return nil, fmt.Errorf("%w: target_tag and at least one source tag are required", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, "merge", func(ctx context.Context, videos *repository.VideoRepository, aliases *repository.TagAliasRepository, m map[string]string) error {
		for _, src := range srcs {
			if _, err := link(ctx, aliases, m, src, target); err != nil {
				return err
			}
		}
		merged := make(map[string]string, len(srcs))
		for _, src := range srcs {
			merged[src] = resolveTag(src, m)
		}
		return rewriteKeywords(ctx, videos, m, func(tag string) string {
			if to, ok := merged[tag]; ok {
				return to
			}
			return tag
		})
	})
}

// Delete removes tag from every video and drops aliases that mention it.
func (s *TagService) Delete(ctx context.Context, tag string) ([]domain.TagSummary, error) {
	tag = NormalizeTag(tag)
	if tag == "" {
		return nil, fmt.Errorf("%w: tag is required", domain.ErrInvalidInput)
	}

	return s.mutate(ctx, "delete", func(ctx context.Context, videos *repository.VideoRepository, aliases *repository.TagAliasRepository, m map[string]string) error {
		if err := aliases.DeleteReferencing(ctx, tag); err != nil {
			return err
		}
		for alias, canonical := range m {
			if alias == tag || canonical == tag {
				delete(m, alias)
			}
		}
		return rewriteKeywords(ctx, videos, m, func(t string) string {
			if t == tag {
				return ""
			}
			return t
		})
	})
}

type registryOp func(ctx context.Context, videos *repository.VideoRepository, aliases *repository.TagAliasRepository, m map[string]string) error

// mutate runs op in one transaction and returns the summary it committed.
func (s *TagService) mutate(ctx context.Context, name string, op registryOp) ([]domain.TagSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var summary []domain.TagSummary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		videos := s.videos.WithTx(tx)
		aliases := s.aliases.WithTx(tx)

		m, err := aliases.Map(ctx)
		if err != nil {
			return err
		}
		if err := op(ctx, videos, aliases, m); err != nil {
			return err
		}
		if err := aliases.DeleteDegenerate(ctx); err != nil {
			return err
		}
		summary, err = summarize(ctx, videos, aliases)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", name, err)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(summary),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Tag %s committed", name)
	return summary, nil
}

// link points source at target, keeping the alias table one level deep:
// target is resolved first, and aliases that pointed at source follow it.
// m is updated to match the table.
func link(ctx context.Context, aliases *repository.TagAliasRepository, m map[string]string, source, target string) (*domain.TagAlias, error) {
	if resolved := resolveTag(target, m); resolved != source {
		target = resolved
	}

	row, err := aliases.Upsert(ctx, source, target)
	if err != nil {
		return nil, err
	}
	if err := aliases.Retarget(ctx, []string{source}, target); err != nil {
		return nil, err
	}

	m[source] = target
	for alias, canonical := range m {
		if canonical == source {
			m[alias] = target
		}
	}
	for alias, canonical := range m {
		if alias == canonical {
			delete(m, alias)
		}
	}
	return row, nil
}

// rewriteKeywords applies replace to every video and re-canonicalizes the
// result against m, so aliases created since a video was stored are applied
// too. replace returning "" drops the tag. Only changed lists are written.
func rewriteKeywords(ctx context.Context, videos *repository.VideoRepository, m map[string]string, replace func(tag string) string) error {
	all, err := videos.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, v := range all {
		current := v.KeywordList()
		normalized := NormalizeKeywords(current)
		replaced := make([]string, 0, len(normalized))
		for _, tag := range normalized {
			if next := replace(tag); next != "" {
				replaced = append(replaced, next)
			}
		}

		updated := CanonicalizeKeywords(replaced, m)
		if slices.Equal(updated, current) {
			continue
		}
		if err := videos.UpdateKeywords(ctx, v.ID, updated); err != nil {
			return fmt.Errorf("update keywords of video %s: %w", v.ID, err)
		}
	}
	return nil
}

func summarize(ctx context.Context, videos *repository.VideoRepository, aliases *repository.TagAliasRepository) ([]domain.TagSummary, error) {
	all, err := videos.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := aliases.List(ctx)
	if err != nil {
		return nil, err
	}
	return buildTagSummary(all, rows), nil
}

// buildTagSummary counts tag usage across videos, ordered by usage count
// descending and then by tag.
func buildTagSummary(videos []domain.Video, aliases []domain.TagAlias) []domain.TagSummary {
	byTag := make(map[string]*domain.TagSummary)
	for i := range videos {
		v := &videos[i]
		for _, tag := range NormalizeKeywords(v.KeywordList()) {
			entry, ok := byTag[tag]
			if !ok {
				entry = &domain.TagSummary{Tag: tag, Aliases: []string{}}
				byTag[tag] = entry
			}
			entry.UsageCount++
			if entry.LastUsedAt == nil || v.UpdatedAt.After(*entry.LastUsedAt) {
				updated := v.UpdatedAt
				entry.LastUsedAt = &updated
			}
		}
	}

	for _, a := range aliases {
		if entry, ok := byTag[a.Canonical]; ok {
			entry.Aliases = append(entry.Aliases, a.Alias)
		}
	}

	summary := make([]domain.TagSummary, 0, len(byTag))
	for _, entry := range byTag {
		sort.Strings(entry.Aliases)
		summary = append(summary, *entry)
	}
	sort.Slice(summary, func(i, j int) bool {
		if summary[i].UsageCount != summary[j].UsageCount {
			return summary[i].UsageCount > summary[j].UsageCount
		}
		return summary[i].Tag < summary[j].Tag
	})
	return summary
}
