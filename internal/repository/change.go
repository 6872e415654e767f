package repository

import (
	"context"

	"docingest/internal/model"
)

// Op names a repository write the way a change stream would report it.
type Op string

const (
	OpInsert Op = "INSERT"
	OpModify Op = "MODIFY"
	OpRemove Op = "REMOVE"
)

// Change describes one successful write, with a point-in-time snapshot of
// the affected document.
type Change struct {
	Op       Op
	Document model.Document
}

// ChangeObserver receives every successful create/update/delete. It is
// called synchronously after the write returns; observers that must not
// block the write path should hand the change off to their own queue.
type ChangeObserver func(Change)

// Observe wraps a repository so every successful write is reported to fn,
// change-data-capture style. Reads pass through untouched. Per-document
// ordering follows the order the underlying repository completed the writes.
func Observe(repo DocumentRepository, fn ChangeObserver) DocumentRepository {
	return &observedRepository{next: repo, notify: fn}
}

type observedRepository struct {
	next   DocumentRepository
	notify ChangeObserver
}

var _ DocumentRepository = (*observedRepository)(nil)

func (o *observedRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	stored, err := o.next.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	o.notify(Change{Op: OpInsert, Document: *stored})
	return stored, nil
}

func (o *observedRepository) Update(ctx context.Context, id string, patch UpdatePatch) (*model.Document, error) {
	stored, err := o.next.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	o.notify(Change{Op: OpModify, Document: *stored})
	return stored, nil
}

func (o *observedRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	return o.next.FindByID(ctx, id)
}

func (o *observedRepository) List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error) {
	return o.next.List(ctx, pq)
}

func (o *observedRepository) Delete(ctx context.Context, id string) (*model.Document, error) {
	removed, err := o.next.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	o.notify(Change{Op: OpRemove, Document: *removed})
	return removed, nil
}
