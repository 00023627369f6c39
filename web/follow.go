package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/metrics"
	"github.com/UkralStul/yatube/internal/storage"
)

func (h *Handler) followIndex(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	page, posts, err := h.postPage(r.Context(), r, storage.PostFilter{FollowerID: &user.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "follow.html", &view{Title: "Избранные авторы", Page: page, Posts: posts})
}

// profileFollow подписывает на автора. Подписка на себя молча игнорируется.
func (h *Handler) profileFollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	author, err := h.Storage.GetUserByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if author.ID != user.ID {
		following, err := h.Storage.IsFollowing(ctx, user.ID, author.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if err := h.Storage.Follow(ctx, user.ID, author.ID); err != nil {
			h.fail(w, r, errors.Annotatef(err, "follow %s", author.Username))
			return
		}
		if !following {
			metrics.RecordCreated("follow")
		}
	}
	redirect(w, r, profileURL(author.Username))
}

func (h *Handler) profileUnfollow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	author, err := h.Storage.GetUserByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if author.ID != user.ID {
		if err := h.Storage.Unfollow(ctx, user.ID, author.ID); err != nil {
			h.fail(w, r, errors.Annotatef(err, "unfollow %s", author.Username))
			return
		}
	}
	redirect(w, r, profileURL(author.Username))
}
