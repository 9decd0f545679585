package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
	"gorm.io/gorm"
)

// TagAliasRepository handles alias rows of the tag registry.
type TagAliasRepository struct {
	db *gorm.DB
}

// NewTagAliasRepository creates a new TagAliasRepository.
func NewTagAliasRepository(db *gorm.DB) *TagAliasRepository {
	return &TagAliasRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *TagAliasRepository) WithTx(tx *gorm.DB) *TagAliasRepository {
	return &TagAliasRepository{db: tx}
}

// List returns all aliases ordered by alias.
func (r *TagAliasRepository) List(ctx context.Context) ([]domain.TagAlias, error) {
	var aliases []domain.TagAlias
	if err := r.db.WithContext(ctx).Order("alias ASC").Find(&aliases).Error; err != nil {
		return nil, err
	}
	return aliases, nil
}

// Map returns alias -> canonical for every row.
func (r *TagAliasRepository) Map(ctx context.Context) (map[string]string, error) {
	aliases, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(aliases))
	for _, a := range aliases {
		m[a.Alias] = a.Canonical
	}
	return m, nil
}

// Upsert points alias at canonical, creating the row if needed.
// Inputs must already be normalized.
func (r *TagAliasRepository) Upsert(ctx context.Context, alias, canonical string) (*domain.TagAlias, error) {
	var row domain.TagAlias
	err := r.db.WithContext(ctx).First(&row, "alias = ?", alias).Error
	switch {
	case err == nil:
		if row.Canonical == canonical {
			return &row, nil
		}
		row.Canonical = canonical
		if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = domain.TagAlias{
			ID:        uuid.New().String(),
			Alias:     alias,
			Canonical: canonical,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
		return &row, nil
	default:
		return nil, err
	}
}

// DeleteByAlias removes the row for alias. Missing rows are not an error.
func (r *TagAliasRepository) DeleteByAlias(ctx context.Context, alias string) error {
	return r.db.WithContext(ctx).Where("alias = ?", alias).Delete(&domain.TagAlias{}).Error
}

// Retarget moves every alias whose canonical is in from onto to.
func (r *TagAliasRepository) Retarget(ctx context.Context, from []string, to string) error {
	if len(from) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.TagAlias{}).
		Where("canonical IN ?", from).
		Update("canonical", to).Error
}

// DeleteReferencing removes rows naming tag as alias or canonical.
func (r *TagAliasRepository) DeleteReferencing(ctx context.Context, tag string) error {
	return r.db.WithContext(ctx).
		Where("alias = ? OR canonical = ?", tag, tag).
		Delete(&domain.TagAlias{}).Error
}

// DeleteDegenerate removes rows whose alias equals their canonical.
func (r *TagAliasRepository) DeleteDegenerate(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("alias = canonical").Delete(&domain.TagAlias{}).Error
}
