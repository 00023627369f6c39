package domain

import (
	"regexp"
	"time"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"type:varchar(254)"`
	FirstName    string    `json:"firstName" gorm:"type:varchar(150)"`
	LastName     string    `json:"lastName" gorm:"type:varchar(150)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(128);not null"`
	DateJoined   time.Time `json:"dateJoined" gorm:"not null;default:now()"`
}

// FullName возвращает имя и фамилию, либо username, если они не заданы.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// Group представляет сообщество, к которому может относиться пост.
type Group struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Title       string `json:"title" gorm:"type:varchar(200);not null"`
	Slug        string `json:"slug" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]{1,50}$`)

// ValidSlug проверяет, что slug годится для адреса /group/<slug>/ и
// помещается в колонку groups.slug.
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}

// Post представляет пост в системе.
type Post struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	PubDate  time.Time `json:"pubDate" gorm:"not null;default:now();index"`
	Image    string    `json:"image,omitempty" gorm:"type:varchar(100)"`
	AuthorID uint      `json:"authorId" gorm:"not null;index"`
	GroupID  *uint     `json:"groupId,omitempty" gorm:"index"`

	// Заполняются dataloader'ом, в БД не хранятся.
	Author *User  `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Group  *Group `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL"`
}

// Comment представляет комментарий к посту.
type Comment struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	Created  time.Time `json:"created" gorm:"not null;default:now()"`
	PostID   uint      `json:"postId" gorm:"not null;index"`
	AuthorID uint      `json:"authorId" gorm:"not null;index"`

	Post   *Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Author *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

// Follow - подписка пользователя UserID на автора AuthorID.
type Follow struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	UserID   uint `json:"userId" gorm:"not null;uniqueIndex:idx_follow_user_author"`
	AuthorID uint `json:"authorId" gorm:"not null;uniqueIndex:idx_follow_user_author;index"`

	User   *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Author *User `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

// Truncate возвращает первые n символов текста, как в заголовках страниц.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
