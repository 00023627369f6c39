package commands

import (
	"context"

	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/auth"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

// demoPassword - пароль демонстрационных пользователей.
const demoPassword = "YatubeDemo42"

func fillWithMockData(ctx context.Context, s storage.Storage) error {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return errors.Trace(err)
	}

	// 1. Создаем двух авторов.
	leo, err := s.CreateUser(ctx, &domain.User{Username: "leo", FirstName: "Лев", LastName: "Толстой", PasswordHash: hash})
	if err != nil {
		return errors.Annotate(err, "create user leo")
	}
	xena, err := s.CreateUser(ctx, &domain.User{Username: "xena", FirstName: "Xena", PasswordHash: hash})
	if err != nil {
		return errors.Annotate(err, "create user xena")
	}

	// 2. Группа для части постов.
	group, err := s.CreateGroup(ctx, &domain.Group{
		Title:       "Лев Толстой - зеркало русской революции",
		Slug:        "leo",
		Description: "Группа, посвящённая творчеству Льва Толстого.",
	})
	if err != nil {
		return errors.Annotate(err, "create group")
	}

	// 3. Посты: один в группе, один без.
	post, err := s.CreatePost(ctx, &domain.Post{
		Text:     "Все счастливые семьи похожи друг на друга, каждая несчастливая семья несчастлива по-своему.",
		AuthorID: leo.ID,
		GroupID:  &group.ID,
	})
	if err != nil {
		return errors.Annotate(err, "create post in group")
	}
	if _, err := s.CreatePost(ctx, &domain.Post{
		Text:     "Сегодня тренировка, завтра поход.",
		AuthorID: xena.ID,
	}); err != nil {
		return errors.Annotate(err, "create post without group")
	}

	// 4. Комментарий и подписка.
	if _, err := s.CreateComment(ctx, &domain.Comment{
		Text:     "Отличное начало романа!",
		PostID:   post.ID,
		AuthorID: xena.ID,
	}); err != nil {
		return errors.Annotate(err, "create comment")
	}
	if err := s.Follow(ctx, xena.ID, leo.ID); err != nil {
		return errors.Annotate(err, "create follow")
	}

	log.Infof("Mock data filled successfully: users leo and xena (password %q), group %q", demoPassword, group.Slug)
	return nil
}
