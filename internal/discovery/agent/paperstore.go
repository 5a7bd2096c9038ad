package agent

import (
	"context"

	scifinderrors "paperlink-discovery/internal/errors"
	"paperlink-discovery/internal/repository"

	dtypes "paperlink-discovery/internal/discovery/types"
)

// RepositoryPaperStore adapts the catalog's PaperRepository to the
// discovery core's read-only PaperStore contract.
type RepositoryPaperStore struct {
	papers repository.PaperRepository
}

func NewRepositoryPaperStore(papers repository.PaperRepository) *RepositoryPaperStore {
	return &RepositoryPaperStore{papers: papers}
}

func (s *RepositoryPaperStore) GetSourcePaper(ctx context.Context, paperID string) (dtypes.SourcePaper, error) {
	p, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		return dtypes.SourcePaper{}, err
	}
	if p == nil {
		return dtypes.SourcePaper{}, scifinderrors.NewInvalidInputError("paper not found", "paper_id")
	}

	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.Name)
	}

	sp := dtypes.SourcePaper{
		ID:            p.ID,
		Title:         p.Title,
		Authors:       authors,
		PublishedDate: p.PublishedAt,
	}
	if p.Abstract != nil {
		sp.Abstract = *p.Abstract
	}
	if p.DOI != nil {
		sp.DOI = *p.DOI
	}
	if p.Journal != nil {
		sp.Journal = *p.Journal
	}
	sp.Keywords = p.Keywords
	if len(p.Categories) > 0 {
		sp.PrimaryField = p.Categories[0].Name
	}
	return sp, nil
}
