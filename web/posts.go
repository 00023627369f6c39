package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/dataloader"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/forms"
	"github.com/UkralStul/yatube/internal/metrics"
	"github.com/UkralStul/yatube/internal/paginator"
	"github.com/UkralStul/yatube/internal/storage"
)

func uintString(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func profileURL(username string) string { return "/profile/" + username + "/" }

func postURL(id uint) string { return "/posts/" + uintString(id) + "/" }

// postPage считает посты по фильтру, выбирает запрошенную страницу и
// подгружает авторов и группы.
func (h *Handler) postPage(ctx context.Context, r *http.Request, filter storage.PostFilter) (paginator.Page, []*domain.Post, error) {
	count, err := h.Storage.CountPosts(ctx, filter)
	if err != nil {
		return paginator.Page{}, nil, errors.Trace(err)
	}
	page := paginator.New(count, h.PostsPerPage, r.URL.Query().Get("page"))
	posts, err := h.Storage.ListPosts(ctx, filter, page.Args())
	if err != nil {
		return page, nil, errors.Trace(err)
	}
	if err := dataloader.For(ctx, h.Storage).AttachPosts(ctx, posts); err != nil {
		return page, nil, errors.Trace(err)
	}
	return page, posts, nil
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	page, posts, err := h.postPage(r.Context(), r, storage.PostFilter{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "index.html", &view{Title: "Последние обновления на сайте", Page: page, Posts: posts})
}

func (h *Handler) groupPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	group, err := h.Storage.GetGroupBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, posts, err := h.postPage(ctx, r, storage.PostFilter{GroupID: &group.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "group_list.html", &view{
		Title: "Записи сообщества " + group.Title,
		Group: group,
		Page:  page,
		Posts: posts,
	})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	author, err := h.Storage.GetUserByUsername(ctx, chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, posts, err := h.postPage(ctx, r, storage.PostFilter{AuthorID: &author.ID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	followers, err := h.Storage.CountFollowers(ctx, author.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	v := &view{
		Title:       "Профайл пользователя " + author.FullName(),
		Author:      author,
		Page:        page,
		Posts:       posts,
		AuthorPosts: page.Count,
		Followers:   followers,
	}
	// Флаг подписки нужен только вошедшему пользователю на чужом профиле
	if user := currentUser(r); user != nil && user.ID != author.ID {
		if v.Following, err = h.Storage.IsFollowing(ctx, user.ID, author.ID); err != nil {
			h.fail(w, r, err)
			return
		}
	} else if user != nil {
		v.IsOwner = true
	}
	h.render(w, r, "profile.html", v)
}

func (h *Handler) postDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	post, err := h.Storage.GetPostByID(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	loaders := dataloader.For(ctx, h.Storage)
	if err := loaders.AttachPosts(ctx, []*domain.Post{post}); err != nil {
		h.fail(w, r, err)
		return
	}

	authorPosts, err := h.Storage.CountPosts(ctx, storage.PostFilter{AuthorID: &post.AuthorID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	count, err := h.Storage.CountComments(ctx, post.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := paginator.New(count, h.CommentsPerPage, r.URL.Query().Get("page"))
	comments, err := h.Storage.ListComments(ctx, post.ID, page.Args())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := loaders.AttachComments(ctx, comments); err != nil {
		h.fail(w, r, err)
		return
	}

	v := &view{
		Title:       "Пост " + domain.Truncate(post.Text, 30),
		Post:        post,
		Page:        page,
		Comments:    comments,
		AuthorPosts: authorPosts,
		Form:        &forms.CommentForm{},
	}
	if user := currentUser(r); user != nil && user.ID == post.AuthorID {
		v.IsOwner = true
	}
	h.render(w, r, "post_detail.html", v)
}

// postFormView рисует форму поста со списком групп.
func (h *Handler) postFormView(w http.ResponseWriter, r *http.Request, v *view) {
	groups, err := h.Storage.ListGroups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v.Groups = groups
	if v.IsEdit {
		v.Title = "Редактировать запись"
	} else {
		v.Title = "Новая запись"
	}
	h.render(w, r, "post_create.html", v)
}

// savePostForm разбирает и проверяет форму поста и сохраняет картинку.
// Возвращает путь сохраненной картинки или пустую строку.
func (h *Handler) savePostForm(r *http.Request) (*forms.PostForm, string, error) {
	form, err := forms.ParsePostForm(r)
	if err != nil {
		return nil, "", errors.Trace(err)
	}
	if err := form.Validate(r.Context(), h.Storage); err != nil {
		return form, "", err
	}
	if form.Image == nil {
		return form, "", nil
	}
	imagePath, err := h.Media.SavePostImage(form.Image.Data, form.Image.Ext)
	if err != nil {
		return form, "", errors.Trace(err)
	}
	return form, imagePath, nil
}

func (h *Handler) postCreate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if r.Method != http.MethodPost {
		h.postFormView(w, r, &view{Form: &forms.PostForm{}})
		return
	}

	form, imagePath, err := h.savePostForm(r)
	if verr, ok := forms.AsValidationError(err); ok {
		h.postFormView(w, r, &view{Form: form, Errors: verr})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	post := &domain.Post{AuthorID: user.ID}
	form.Apply(post, imagePath)
	if _, err := h.Storage.CreatePost(r.Context(), post); err != nil {
		h.Media.Remove(imagePath)
		h.fail(w, r, errors.Annotate(err, "create post"))
		return
	}
	metrics.RecordCreated("post")
	redirect(w, r, profileURL(user.Username))
}

func (h *Handler) postEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	post, err := h.Storage.GetPostByID(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if post.AuthorID != user.ID {
		redirect(w, r, postURL(post.ID))
		return
	}
	if r.Method != http.MethodPost {
		h.postFormView(w, r, &view{Form: forms.PostFormFrom(post), Post: post, IsEdit: true})
		return
	}

	form, imagePath, err := h.savePostForm(r)
	if verr, ok := forms.AsValidationError(err); ok {
		h.postFormView(w, r, &view{Form: form, Errors: verr, Post: post, IsEdit: true})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	oldImage := post.Image
	form.Apply(post, imagePath)
	if _, err := h.Storage.UpdatePost(ctx, post); err != nil {
		h.Media.Remove(imagePath)
		h.fail(w, r, errors.Annotate(err, "update post"))
		return
	}
	if oldImage != "" && oldImage != post.Image {
		if err := h.Media.Remove(oldImage); err != nil {
			h.Log.WithError(err).WithField("image", oldImage).Warn("failed to remove replaced image")
		}
	}
	redirect(w, r, postURL(post.ID))
}

// addComment всегда возвращает на страницу поста; невалидный комментарий
// просто не сохраняется.
func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := postID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	post, err := h.Storage.GetPostByID(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.Method != http.MethodPost {
		redirect(w, r, postURL(post.ID))
		return
	}

	form, err := forms.ParseCommentForm(r)
	if err == nil {
		err = form.Validate()
	}
	if err != nil {
		h.Log.WithError(err).WithField("post_id", post.ID).Debug("comment rejected")
		redirect(w, r, postURL(post.ID))
		return
	}

	comment := &domain.Comment{Text: form.Text, PostID: post.ID, AuthorID: currentUser(r).ID}
	if _, err := h.Storage.CreateComment(ctx, comment); err != nil {
		h.fail(w, r, errors.Annotate(err, "create comment"))
		return
	}
	metrics.RecordCreated("comment")
	redirect(w, r, postURL(post.ID))
}
