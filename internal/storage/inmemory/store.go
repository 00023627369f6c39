package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

type followKey struct {
	userID, authorID uint
}

// Store реализует интерфейс Storage в памяти.
// Наружу отдаются копии записей, чтобы вызывающий код не менял состояние хранилища.
type Store struct {
	mu       sync.RWMutex
	nextID   map[string]uint // последовательность на каждую таблицу
	now      func() time.Time
	users    map[uint]*domain.User
	groups   map[uint]*domain.Group
	posts    map[uint]*domain.Post
	comments map[uint]*domain.Comment
	follows  map[followKey]*domain.Follow

	usernames map[string]uint // map[username]userID
	slugs     map[string]uint // map[slug]groupID
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		nextID:    make(map[string]uint),
		now:       func() time.Time { return time.Now().UTC() },
		users:     make(map[uint]*domain.User),
		groups:    make(map[uint]*domain.Group),
		posts:     make(map[uint]*domain.Post),
		comments:  make(map[uint]*domain.Comment),
		follows:   make(map[followKey]*domain.Follow),
		usernames: make(map[string]uint),
		slugs:     make(map[string]uint),
	}
}

func (s *Store) id(table string) uint {
	s.nextID[table]++
	return s.nextID[table]
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernames[user.Username]; ok {
		return nil, errors.AlreadyExistsf("user %q", user.Username)
	}
	u := *user
	u.ID = s.id("users")
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now()
	}
	s.users[u.ID] = &u
	s.usernames[u.Username] = u.ID
	*user = u
	return copyUser(&u), nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.NotFoundf("user with id %d", id)
	}
	return copyUser(u), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, errors.NotFoundf("user %q", username)
	}
	return copyUser(s.users[id]), nil
}

// DeleteUser удаляет пользователя вместе с его постами, комментариями и подписками.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return errors.NotFoundf("user with id %d", id)
	}
	for pid, p := range s.posts {
		if p.AuthorID == id {
			s.deletePostLocked(pid)
		}
	}
	for cid, c := range s.comments {
		if c.AuthorID == id {
			delete(s.comments, cid)
		}
	}
	for k := range s.follows {
		if k.userID == id || k.authorID == id {
			delete(s.follows, k)
		}
	}
	delete(s.usernames, u.Username)
	delete(s.users, id)
	return nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slugs[group.Slug]; ok {
		return nil, errors.AlreadyExistsf("group with slug %q", group.Slug)
	}
	g := *group
	g.ID = s.id("groups")
	s.groups[g.ID] = &g
	s.slugs[g.Slug] = g.ID
	*group = g
	return copyGroup(&g), nil
}

func (s *Store) GetGroupByID(ctx context.Context, id uint) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, errors.NotFoundf("group with id %d", id)
	}
	return copyGroup(g), nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slugs[slug]
	if !ok {
		return nil, errors.NotFoundf("group %q", slug)
	}
	return copyGroup(s.groups[id]), nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]*domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, copyGroup(g))
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Title != groups[j].Title {
			return groups[i].Title < groups[j].Title
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// DeleteGroup удаляет группу, посты группы остаются без неё.
func (s *Store) DeleteGroup(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return errors.NotFoundf("group with id %d", id)
	}
	for _, p := range s.posts {
		if p.GroupID != nil && *p.GroupID == id {
			p.GroupID = nil
		}
	}
	delete(s.slugs, g.Slug)
	delete(s.groups, id)
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPostRefs(post); err != nil {
		return nil, err
	}
	p := copyPost(post)
	p.ID = s.id("posts")
	p.PubDate = s.now()
	s.posts[p.ID] = p

	post.ID, post.PubDate = p.ID, p.PubDate
	return copyPost(p), nil
}

// UpdatePost меняет текст, группу и картинку поста. Автор и дата публикации не меняются.
func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[post.ID]
	if !ok {
		return nil, errors.NotFoundf("post with id %d", post.ID)
	}
	if err := s.checkPostRefs(&domain.Post{AuthorID: p.AuthorID, GroupID: post.GroupID}); err != nil {
		return nil, err
	}
	p.Text = post.Text
	p.GroupID = copyID(post.GroupID)
	p.Image = post.Image
	return copyPost(p), nil
}

func (s *Store) checkPostRefs(post *domain.Post) error {
	if _, ok := s.users[post.AuthorID]; !ok {
		return errors.NotFoundf("author with id %d", post.AuthorID)
	}
	if post.GroupID != nil {
		if _, ok := s.groups[*post.GroupID]; !ok {
			return errors.NotFoundf("group with id %d", *post.GroupID)
		}
	}
	return nil
}

func (s *Store) GetPostByID(ctx context.Context, id uint) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, errors.NotFoundf("post with id %d", id)
	}
	return copyPost(p), nil
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterPosts(filter)), nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, args storage.PaginationArgs) ([]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := s.filterPosts(filter)
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].PubDate.Equal(posts[j].PubDate) {
			return posts[i].PubDate.After(posts[j].PubDate)
		}
		return posts[i].ID > posts[j].ID
	})

	page := paginate(posts, args)
	result := make([]*domain.Post, len(page))
	for i, p := range page {
		result[i] = copyPost(p)
	}
	return result, nil
}

func (s *Store) filterPosts(filter storage.PostFilter) []*domain.Post {
	posts := make([]*domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.GroupID != nil && (p.GroupID == nil || *p.GroupID != *filter.GroupID) {
			continue
		}
		if filter.FollowerID != nil {
			if _, ok := s.follows[followKey{*filter.FollowerID, p.AuthorID}]; !ok {
				continue
			}
		}
		posts = append(posts, p)
	}
	return posts
}

// DeletePost удаляет пост вместе с комментариями.
func (s *Store) DeletePost(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return errors.NotFoundf("post with id %d", id)
	}
	s.deletePostLocked(id)
	return nil
}

func (s *Store) deletePostLocked(id uint) {
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	delete(s.posts, id)
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, errors.NotFoundf("post with id %d", comment.PostID)
	}
	if _, ok := s.users[comment.AuthorID]; !ok {
		return nil, errors.NotFoundf("author with id %d", comment.AuthorID)
	}

	c := *comment
	c.Post, c.Author = nil, nil
	c.ID = s.id("comments")
	c.Created = s.now()
	s.comments[c.ID] = &c

	comment.ID, comment.Created = c.ID, c.Created
	cc := c
	return &cc, nil
}

func (s *Store) CountComments(ctx context.Context, postID uint) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.postComments(postID)), nil
}

func (s *Store) ListComments(ctx context.Context, postID uint, args storage.PaginationArgs) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comments := s.postComments(postID)
	// Сортируем по времени создания, новые первыми
	sort.Slice(comments, func(i, j int) bool {
		if !comments[i].Created.Equal(comments[j].Created) {
			return comments[i].Created.After(comments[j].Created)
		}
		return comments[i].ID > comments[j].ID
	})

	page := paginate(comments, args)
	result := make([]*domain.Comment, len(page))
	for i, c := range page {
		cc := *c
		result[i] = &cc
	}
	return result, nil
}

func (s *Store) postComments(postID uint) []*domain.Comment {
	comments := make([]*domain.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			comments = append(comments, c)
		}
	}
	return comments
}

// === Follow Methods ===

func (s *Store) Follow(ctx context.Context, userID, authorID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return errors.NotFoundf("user with id %d", userID)
	}
	if _, ok := s.users[authorID]; !ok {
		return errors.NotFoundf("author with id %d", authorID)
	}
	key := followKey{userID, authorID}
	if _, ok := s.follows[key]; ok {
		return nil
	}
	s.follows[key] = &domain.Follow{ID: s.id("follows"), UserID: userID, AuthorID: authorID}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, userID, authorID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.follows, followKey{userID, authorID})
	return nil
}

func (s *Store) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[followKey{userID, authorID}]
	return ok, nil
}

func (s *Store) CountFollowers(ctx context.Context, authorID uint) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.follows {
		if k.authorID == authorID {
			n++
		}
	}
	return n, nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uint]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = copyUser(u)
		}
	}
	return result, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uint]*domain.Group, len(ids))
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			result[id] = copyGroup(g)
		}
	}
	return result, nil
}

// paginate - вспомогательная функция для пагинации
func paginate[T any](items []T, args storage.PaginationArgs) []T {
	start := args.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if args.Limit > 0 && start+args.Limit < end {
		end = start + args.Limit
	}
	return items[start:end]
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyGroup(g *domain.Group) *domain.Group {
	c := *g
	return &c
}

func copyPost(p *domain.Post) *domain.Post {
	c := *p
	c.GroupID = copyID(p.GroupID)
	c.Author, c.Group = nil, nil
	return &c
}

func copyID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
