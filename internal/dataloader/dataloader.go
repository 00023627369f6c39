package dataloader

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

type contextKey string

const key = contextKey("dataloaders")

// idKey - ключ лоадера по числовому идентификатору.
type idKey uint

func (k idKey) String() string   { return strconv.FormatUint(uint64(k), 10) }
func (k idKey) Raw() interface{} { return uint(k) }

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	UsersByID  *dataloader.Loader
	GroupsByID *dataloader.Loader
}

// NewLoaders создает лоадеры на один запрос.
func NewLoaders(store storage.Storage) *Loaders {
	wait := dataloader.WithWait(time.Millisecond * 1)
	return &Loaders{
		UsersByID: dataloader.NewBatchedLoader(func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
			users, err := store.GetUsersByIDs(ctx, rawIDs(keys))
			return results(keys, err, func(id uint) (interface{}, bool) {
				u, ok := users[id]
				return u, ok
			})
		}, wait),
		GroupsByID: dataloader.NewBatchedLoader(func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
			groups, err := store.GetGroupsByIDs(ctx, rawIDs(keys))
			return results(keys, err, func(id uint) (interface{}, bool) {
				g, ok := groups[id]
				return g, ok
			})
		}, wait),
	}
}

func rawIDs(keys dataloader.Keys) []uint {
	ids := make([]uint, len(keys))
	for i, k := range keys {
		ids[i] = k.Raw().(uint)
	}
	return ids
}

// results формирует ответ в том же порядке, что и ключи.
func results(keys dataloader.Keys, err error, get func(uint) (interface{}, bool)) []*dataloader.Result {
	out := make([]*dataloader.Result, len(keys))
	for i, k := range keys {
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			out[i] = &dataloader.Result{Error: err}
			continue
		}
		id := k.Raw().(uint)
		v, ok := get(id)
		if !ok {
			out[i] = &dataloader.Result{Error: errors.NotFoundf("object %d", id)}
			continue
		}
		out[i] = &dataloader.Result{Data: v}
	}
	return out
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For извлекает лоадеры из контекста. Если middleware не подключен,
// создает одноразовые лоадеры поверх store.
func For(ctx context.Context, store storage.Storage) *Loaders {
	if l, ok := ctx.Value(key).(*Loaders); ok {
		return l
	}
	return NewLoaders(store)
}

func (l *Loaders) users(ctx context.Context, ids []uint) (map[uint]*domain.User, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = idKey(id)
	}
	values, errs := l.UsersByID.LoadMany(ctx, keys)()
	out := make(map[uint]*domain.User, len(ids))
	for i, id := range ids {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		out[id] = values[i].(*domain.User)
	}
	return out, nil
}

func (l *Loaders) groups(ctx context.Context, ids []uint) (map[uint]*domain.Group, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = idKey(id)
	}
	values, errs := l.GroupsByID.LoadMany(ctx, keys)()
	out := make(map[uint]*domain.Group, len(ids))
	for i, id := range ids {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		out[id] = values[i].(*domain.Group)
	}
	return out, nil
}

// AttachPosts заполняет Author и Group у постов одним запросом на каждый тип.
func (l *Loaders) AttachPosts(ctx context.Context, posts []*domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	var authorIDs, groupIDs []uint
	seenA, seenG := map[uint]bool{}, map[uint]bool{}
	for _, p := range posts {
		if !seenA[p.AuthorID] {
			seenA[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
		if p.GroupID != nil && !seenG[*p.GroupID] {
			seenG[*p.GroupID] = true
			groupIDs = append(groupIDs, *p.GroupID)
		}
	}

	authors, err := l.users(ctx, authorIDs)
	if err != nil {
		return errors.Annotate(err, "loading post authors")
	}
	var groups map[uint]*domain.Group
	if len(groupIDs) > 0 {
		if groups, err = l.groups(ctx, groupIDs); err != nil {
			return errors.Annotate(err, "loading post groups")
		}
	}
	for _, p := range posts {
		p.Author = authors[p.AuthorID]
		if p.GroupID != nil {
			p.Group = groups[*p.GroupID]
		}
	}
	return nil
}

// AttachComments заполняет Author у комментариев.
func (l *Loaders) AttachComments(ctx context.Context, comments []*domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	var ids []uint
	seen := map[uint]bool{}
	for _, c := range comments {
		if !seen[c.AuthorID] {
			seen[c.AuthorID] = true
			ids = append(ids, c.AuthorID)
		}
	}
	authors, err := l.users(ctx, ids)
	if err != nil {
		return errors.Annotate(err, "loading comment authors")
	}
	for _, c := range comments {
		c.Author = authors[c.AuthorID]
	}
	return nil
}
