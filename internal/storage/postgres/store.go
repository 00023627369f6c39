package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/juju/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// Config - параметры подключения к базе.
type Config struct {
	DSN string
	// LogLevel - уровень логирования SQL-запросов gorm.
	LogLevel logger.LogLevel
	// Writer получает строки лога gorm, например *logrus.Logger.
	Writer logger.Writer
	// SkipMigrate отключает AutoMigrate при подключении.
	SkipMigrate bool
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(cfg Config) (*Store, error) {
	return NewWithDialector(postgres.Open(cfg.DSN), cfg)
}

// NewWithDialector позволяет подставить собственный диалект, например поверх sqlmock.
func NewWithDialector(dialector gorm.Dialector, cfg Config) (*Store, error) {
	gormLogger := logger.Default.LogMode(cfg.LogLevel)
	if cfg.Writer != nil {
		gormLogger = logger.New(cfg.Writer, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		// Нарушения уникальности приходят как gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Annotate(err, "failed to connect to database")
	}

	s := &Store{db: db}
	if !cfg.SkipMigrate {
		if err := s.Migrate(context.Background()); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return s, nil
}

// Migrate выполняет миграцию схемы.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	)
	return errors.Annotate(err, "failed to migrate database")
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return sqlDB.Close()
}

// translate приводит ошибки gorm к таксономии juju/errors.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NewNotFound(err, what)
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.NewAlreadyExists(err, what)
	case stderrors.Is(err, gorm.ErrForeignKeyViolated):
		return errors.NewNotFound(err, what+": referenced record")
	}
	return errors.Annotate(err, what)
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err, "user "+user.Username)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, "user "+username)
	}
	return &user, nil
}

// DeleteUser удаляет пользователя; посты, комментарии и подписки удаляет каскад в БД.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return translate(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("user with id %d", id)
	}
	return nil
}

// === Group Methods ===

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) (*domain.Group, error) {
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, translate(err, "group "+group.Slug)
	}
	return group, nil
}

func (s *Store) GetGroupByID(ctx context.Context, id uint) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, translate(err, "group")
	}
	return &group, nil
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error) {
	var group domain.Group
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, translate(err, "group "+slug)
	}
	return &group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*domain.Group, error) {
	var groups []*domain.Group
	err := s.db.WithContext(ctx).Order("title, id").Find(&groups).Error
	return groups, translate(err, "groups")
}

// DeleteGroup удаляет группу; у постов group_id обнуляется по ON DELETE SET NULL.
func (s *Store) DeleteGroup(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Group{}, id)
	if res.Error != nil {
		return translate(res.Error, "group")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("group with id %d", id)
	}
	return nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	post.PubDate = time.Now().UTC()
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return nil, translate(err, "post")
	}
	// GORM автоматически заполнит ID после создания
	return post, nil
}

// UpdatePost меняет текст, группу и картинку поста. Автор и дата публикации не меняются.
func (s *Store) UpdatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	var updated domain.Post
	// Используем транзакцию для атомарности операции чтения-записи
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, post.ID).Error; err != nil {
			return err
		}
		updated.Text = post.Text
		updated.GroupID = post.GroupID
		updated.Image = post.Image
		return tx.Model(&updated).Select("text", "group_id", "image").Updates(map[string]interface{}{
			"text":     updated.Text,
			"group_id": updated.GroupID,
			"image":    updated.Image,
		}).Error
	})
	if err != nil {
		return nil, translate(err, "post")
	}
	return &updated, nil
}

func (s *Store) GetPostByID(ctx context.Context, id uint) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		return nil, translate(err, "post")
	}
	return &post, nil
}

func (s *Store) posts(ctx context.Context, filter storage.PostFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&domain.Post{})
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}
	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}
	if filter.FollowerID != nil {
		following := s.db.Model(&domain.Follow{}).Select("author_id").Where("user_id = ?", *filter.FollowerID)
		query = query.Where("author_id IN (?)", following)
	}
	return query
}

func (s *Store) CountPosts(ctx context.Context, filter storage.PostFilter) (int, error) {
	var n int64
	if err := s.posts(ctx, filter).Count(&n).Error; err != nil {
		return 0, translate(err, "posts")
	}
	return int(n), nil
}

func (s *Store) ListPosts(ctx context.Context, filter storage.PostFilter, args storage.PaginationArgs) ([]*domain.Post, error) {
	var posts []*domain.Post
	err := s.posts(ctx, filter).
		Order("pub_date DESC, id DESC").
		Limit(args.Limit).
		Offset(args.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "posts")
	}
	return posts, nil
}

// DeletePost удаляет пост; комментарии удаляет каскад в БД.
func (s *Store) DeletePost(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&domain.Post{}, id)
	if res.Error != nil {
		return translate(res.Error, "post")
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("post with id %d", id)
	}
	return nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	comment.Created = time.Now().UTC()
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return nil, translate(err, "comment")
	}
	return comment, nil
}

func (s *Store) CountComments(ctx context.Context, postID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Comment{}).Where("post_id = ?", postID).Count(&n).Error
	if err != nil {
		return 0, translate(err, "comments")
	}
	return int(n), nil
}

func (s *Store) ListComments(ctx context.Context, postID uint, args storage.PaginationArgs) ([]*domain.Comment, error) {
	var comments []*domain.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created DESC, id DESC").
		Limit(args.Limit).
		Offset(args.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, "comments")
	}
	return comments, nil
}

// === Follow Methods ===

func (s *Store) Follow(ctx context.Context, userID, authorID uint) error {
	follow := domain.Follow{UserID: userID, AuthorID: authorID}
	// Повторная подписка упирается в уникальный индекс и ничего не меняет
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&follow).Error
	return translate(err, "follow")
}

func (s *Store) Unfollow(ctx context.Context, userID, authorID uint) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&domain.Follow{}).Error
	return translate(err, "follow")
}

func (s *Store) IsFollowing(ctx context.Context, userID, authorID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	if err != nil {
		return false, translate(err, "follow")
	}
	return n > 0, nil
}

func (s *Store) CountFollowers(ctx context.Context, authorID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).Where("author_id = ?", authorID).Count(&n).Error
	if err != nil {
		return 0, translate(err, "followers")
	}
	return int(n), nil
}

// === Dataloader Methods ===

func (s *Store) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]*domain.User, error) {
	var users []*domain.User
	// Загружаем всех пользователей одним запросом
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, translate(err, "users")
	}
	result := make(map[uint]*domain.User, len(users))
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (s *Store) GetGroupsByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Group, error) {
	var groups []*domain.Group
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, translate(err, "groups")
	}
	result := make(map[uint]*domain.Group, len(groups))
	for _, g := range groups {
		result[g.ID] = g
	}
	return result, nil
}
