package storage

import (
	"context"

	"github.com/UkralStul/yatube/internal/domain"
)

// PostFilter ограничивает выборку постов. Пустой фильтр - все посты.
type PostFilter struct {
	GroupID  *uint
	AuthorID *uint

	// FollowerID - посты авторов, на которых подписан этот пользователь.
	FollowerID *uint
}

// PaginationArgs - аргументы для пагинации.
type PaginationArgs struct {
	Limit  int
	Offset int
}

// Storage определяет контракт для хранилищ.
//
// Отсутствующие записи возвращаются как errors.NotFound, нарушения
// уникальности - как errors.AlreadyExists (github.com/juju/errors).
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id uint) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	DeleteUser(ctx context.Context, id uint) error

	CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error)
	GetGroupByID(ctx context.Context, id uint) (*domain.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error)
	ListGroups(ctx context.Context) ([]*domain.Group, error)
	DeleteGroup(ctx context.Context, id uint) error

	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id uint) (*domain.Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	ListPosts(ctx context.Context, filter PostFilter, args PaginationArgs) ([]*domain.Post, error)
	DeletePost(ctx context.Context, id uint) error

	CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	CountComments(ctx context.Context, postID uint) (int, error)
	ListComments(ctx context.Context, postID uint, args PaginationArgs) ([]*domain.Comment, error)

	// Follow и Unfollow идемпотентны.
	Follow(ctx context.Context, userID, authorID uint) error
	Unfollow(ctx context.Context, userID, authorID uint) error
	IsFollowing(ctx context.Context, userID, authorID uint) (bool, error)
	CountFollowers(ctx context.Context, authorID uint) (int, error)

	// Методы для Dataloader'ов
	GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]*domain.User, error)
	GetGroupsByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Group, error)
}
