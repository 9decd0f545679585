package service

import (
	"context"
	"testing"
	"time"

	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestNormalizeTag(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Python", "python"},
		{"  Data   Science ", "data science"},
		{"\tMachine\nLearning", "machine learning"},
		{"   ", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeTag(tc.in))
		})
	}
}

func TestCanonicalizeKeywords(t *testing.T) {
	aliases := map[string]string{"py": "python", "ml": "machine learning"}

	testCases := []struct {
		name    string
		in      []string
		aliases map[string]string
		want    []string
	}{
		{"normalize and dedupe", []string{"Python ", "python", " Data  Science"}, nil, []string{"python", "data science"}},
		{"alias replaced", []string{"PY", "go"}, aliases, []string{"python", "go"}},
		{"alias collapses onto existing tag", []string{"python", "py", "ML", "machine learning"}, aliases, []string{"python", "machine learning"}},
		{"empties dropped", []string{"", "  ", "rust"}, aliases, []string{"rust"}},
		{"nil input", nil, aliases, []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanonicalizeKeywords(tc.in, tc.aliases)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, CanonicalizeKeywords(got, tc.aliases), "canonicalization must be idempotent")
		})
	}
}

func TestCanonicalizeFollowsChains(t *testing.T) {
	aliases := map[string]string{"a": "b", "b": "c"}
	got := CanonicalizeKeywords([]string{"a", "b", "c"}, aliases)
	assert.Equal(t, []string{"c"}, got)
	assert.Equal(t, got, CanonicalizeKeywords(got, aliases))
}

func TestBuildTagSummary(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	videos := []domain.Video{
		{ID: "1", Keywords: datatypes.JSONSlice[string]{"go", "rust"}, UpdatedAt: t1},
		{ID: "2", Keywords: datatypes.JSONSlice[string]{"Go", "zig"}, UpdatedAt: t2},
		{ID: "3", Keywords: nil, UpdatedAt: t2},
	}
	aliases := []domain.TagAlias{
		{Alias: "golang", Canonical: "go"},
		{Alias: "go-lang", Canonical: "go"},
		{Alias: "orphan", Canonical: "unused"},
	}

	summary := buildTagSummary(videos, aliases)
	require.Len(t, summary, 3)

	assert.Equal(t, "go", summary[0].Tag)
	assert.Equal(t, 2, summary[0].UsageCount)
	require.NotNil(t, summary[0].LastUsedAt)
	assert.True(t, summary[0].LastUsedAt.Equal(t2))
	assert.Equal(t, []string{"go-lang", "golang"}, summary[0].Aliases)

	// Ties are broken by tag name.
	assert.Equal(t, "rust", summary[1].Tag)
	assert.Equal(t, "zig", summary[2].Tag)
	assert.Equal(t, []string{}, summary[1].Aliases)
}

func assertNoDegenerateAliases(t *testing.T, m map[string]string) {
	t.Helper()
	for alias, canonical := range m {
		assert.NotEqual(t, alias, canonical, "degenerate alias %q", alias)
		_, chained := m[canonical]
		assert.False(t, chained, "alias %q points at another alias %q", alias, canonical)
	}
}

func TestTagServiceRename(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v1 := store.addVideo(t, "aaaaaaaaaaa", "a", "c")
	v2 := store.addVideo(t, "bbbbbbbbbbb", "b", "a")
	_, err := svc.CreateAlias(ctx, "x", "a")
	require.NoError(t, err)

	summary, err := svc.Rename(ctx, " A ", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, store.keywords(t, v1.ID))
	assert.Equal(t, []string{"b"}, store.keywords(t, v2.ID))

	m := store.aliasMap(t)
	assert.Equal(t, map[string]string{"a": "b", "x": "b"}, m)
	assertNoDegenerateAliases(t, m)

	require.Len(t, summary, 2)
	assert.Equal(t, "b", summary[0].Tag)
	assert.Equal(t, 2, summary[0].UsageCount)
	assert.Equal(t, []string{"a", "x"}, summary[0].Aliases)
	assert.Equal(t, "c", summary[1].Tag)
}

func TestTagServiceRenameReversesExistingAlias(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v := store.addVideo(t, "aaaaaaaaaaa", "a")
	_, err := svc.CreateAlias(ctx, "b", "a")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, store.keywords(t, v.ID))
	m := store.aliasMap(t)
	assert.Equal(t, map[string]string{"a": "b"}, m)
	assertNoDegenerateAliases(t, m)
}

func TestTagServiceRenameOntoAlias(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v := store.addVideo(t, "aaaaaaaaaaa", "a", "c")
	_, err := svc.CreateAlias(ctx, "b", "c")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, "a", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"c"}, store.keywords(t, v.ID))
	m := store.aliasMap(t)
	assert.Equal(t, map[string]string{"a": "c", "b": "c"}, m)
	assertNoDegenerateAliases(t, m)

	// The stored row points straight at the canonical, not at the alias b.
	rows, err := svc.ListAliases(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Alias)
	assert.Equal(t, "c", rows[0].Canonical)
}

func TestTagServiceRenameValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()
	store.addVideo(t, "aaaaaaaaaaa", "go")

	_, err := svc.Rename(ctx, "  ", "b")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	summary, err := svc.Rename(ctx, "Go", "go ")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Empty(t, store.aliasMap(t))
}

func TestTagServiceMerge(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v1 := store.addVideo(t, "aaaaaaaaaaa", "x", "y", "k")
	v2 := store.addVideo(t, "bbbbbbbbbbb", "y")
	v3 := store.addVideo(t, "ccccccccccc", "z")
	_, err := svc.CreateAlias(ctx, "why", "y")
	require.NoError(t, err)

	summary, err := svc.Merge(ctx, []string{"X", "y", "z", "", "x"}, "Z")
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "k"}, store.keywords(t, v1.ID))
	assert.Equal(t, []string{"z"}, store.keywords(t, v2.ID))
	assert.Equal(t, []string{"z"}, store.keywords(t, v3.ID))

	m := store.aliasMap(t)
	assert.Equal(t, map[string]string{"x": "z", "y": "z", "why": "z"}, m)
	assertNoDegenerateAliases(t, m)

	require.NotEmpty(t, summary)
	assert.Equal(t, "z", summary[0].Tag)
	assert.Equal(t, 3, summary[0].UsageCount)
	assert.Equal(t, []string{"why", "x", "y"}, summary[0].Aliases)
}

func TestTagServiceRegistryOpsHealUntouchedVideos(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v1 := store.addVideo(t, "aaaaaaaaaaa", "py", "go")
	v2 := store.addVideo(t, "bbbbbbbbbbb", "js")
	_, err := svc.CreateAlias(ctx, "py", "python")
	require.NoError(t, err)
	assert.Equal(t, []string{"py", "go"}, store.keywords(t, v1.ID))

	_, err = svc.Merge(ctx, []string{"x"}, "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"python", "go"}, store.keywords(t, v1.ID))

	_, err = svc.CreateAlias(ctx, "js", "javascript")
	require.NoError(t, err)
	summary, err := svc.Delete(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"javascript"}, store.keywords(t, v2.ID))

	tags := make([]string, 0, len(summary))
	for _, entry := range summary {
		tags = append(tags, entry.Tag)
	}
	assert.ElementsMatch(t, []string{"python", "go", "javascript"}, tags)
	assert.NotContains(t, tags, "py")
	assert.NotContains(t, tags, "js")
}

func TestTagServiceMergeValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)

	_, err := svc.Merge(context.Background(), []string{"z", " Z "}, "z")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Merge(context.Background(), []string{"a"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTagServiceDelete(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	v1 := store.addVideo(t, "aaaaaaaaaaa", "t", "u")
	v2 := store.addVideo(t, "bbbbbbbbbbb", "t")
	_, err := svc.CreateAlias(ctx, "tee", "t")
	require.NoError(t, err)
	_, err = svc.CreateAlias(ctx, "q", "u")
	require.NoError(t, err)

	summary, err := svc.Delete(ctx, " T")
	require.NoError(t, err)

	assert.Equal(t, []string{"u"}, store.keywords(t, v1.ID))
	assert.Equal(t, []string{}, store.keywords(t, v2.ID))
	assert.Equal(t, map[string]string{"q": "u"}, store.aliasMap(t))

	require.Len(t, summary, 1)
	assert.Equal(t, "u", summary[0].Tag)

	_, err = svc.Delete(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTagServiceAliases(t *testing.T) {
	store := newTestStore(t)
	svc := NewTagService(store.db, store.videos, store.aliases)
	ctx := context.Background()

	_, err := svc.CreateAlias(ctx, "Go", "go")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.CreateAlias(ctx, "", "go")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	row, err := svc.CreateAlias(ctx, " GoLang ", "Go")
	require.NoError(t, err)
	assert.Equal(t, "golang", row.Alias)
	assert.Equal(t, "go", row.Canonical)

	// Upsert by alias.
	row, err = svc.CreateAlias(ctx, "golang", "go language")
	require.NoError(t, err)
	assert.Equal(t, "go language", row.Canonical)

	// Creating the inverse link keeps the table acyclic.
	_, err = svc.CreateAlias(ctx, "go language", "golang")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"go language": "golang"}, store.aliasMap(t))

	kws, err := svc.Canonicalize(ctx, []string{"Go Language", "golang", "rust"})
	require.NoError(t, err)
	assert.Equal(t, []string{"golang", "rust"}, kws)

	list, err := svc.ListAliases(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.DeleteAlias(ctx, " GO LANGUAGE "))
	require.NoError(t, svc.DeleteAlias(ctx, "missing"))
	assert.Empty(t, store.aliasMap(t))
}
