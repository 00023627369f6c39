package forms

import (
	"bytes"
	"context"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	// Поддерживаемые форматы картинок
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/juju/errors"

	"github.com/UkralStul/yatube/internal/domain"
)

const (
	// MaxImageSize - предельный размер загружаемой картинки.
	MaxImageSize = 5 << 20

	msgBadImage = "Загрузите правильное изображение. Файл, который вы загрузили, поврежден или не является изображением."
	msgBadGroup = "Выберите корректный вариант. Вашего варианта нет среди допустимых значений."
)

var imageTypes = map[string]bool{
	"image/gif":  true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// GroupGetter - то, что нужно форме поста от хранилища.
type GroupGetter interface {
	GetGroupByID(ctx context.Context, id uint) (*domain.Group, error)
}

// Image - проверенная загруженная картинка.
type Image struct {
	Data []byte

	// Ext - расширение с точкой, по реальному содержимому файла.
	Ext string
}

// PostForm - форма создания и редактирования поста.
type PostForm struct {
	Text  string `form:"text" validate:"required"`
	Group string `form:"group"`

	// ClearImage - отмеченный флажок "image-clear" при редактировании.
	ClearImage bool `form:"image-clear"`

	GroupID *uint  `validate:"-"`
	Image   *Image `validate:"-"`

	imageHeader *multipart.FileHeader
}

// PostFormFrom заполняет форму значениями существующего поста.
func PostFormFrom(post *domain.Post) *PostForm {
	f := &PostForm{Text: post.Text, GroupID: post.GroupID}
	if post.GroupID != nil {
		f.Group = strconv.FormatUint(uint64(*post.GroupID), 10)
	}
	return f
}

// ParsePostForm читает форму из запроса, в том числе multipart с картинкой.
func ParsePostForm(r *http.Request) (*PostForm, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxImageSize); err != nil {
			return nil, errors.NewNotValid(err, "multipart form")
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, errors.NewNotValid(err, "form")
	}

	f := &PostForm{
		Text:       strings.TrimSpace(r.PostFormValue("text")),
		Group:      strings.TrimSpace(r.PostFormValue("group")),
		ClearImage: r.PostFormValue("image-clear") != "",
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 && files[0].Size > 0 {
			f.imageHeader = files[0]
		}
	}
	return f, nil
}

// Validate проверяет форму: текст обязателен, группа должна существовать,
// картинка должна распознаваться как изображение.
func (f *PostForm) Validate(ctx context.Context, groups GroupGetter) error {
	verr := check(f)

	if f.Group != "" {
		id, err := strconv.ParseUint(f.Group, 10, 64)
		if err != nil {
			verr.Add("group", msgBadGroup)
		} else if g, err := groups.GetGroupByID(ctx, uint(id)); err != nil {
			if !errors.Is(err, errors.NotFound) {
				return errors.Trace(err)
			}
			verr.Add("group", msgBadGroup)
		} else {
			f.GroupID = &g.ID
		}
	} else {
		f.GroupID = nil
	}

	if f.imageHeader != nil {
		img, err := readImage(f.imageHeader)
		if err != nil {
			verr.Add("image", msgBadImage)
		} else {
			f.Image = img
		}
	}
	return verr.OrNil()
}

// Apply переносит проверенные значения в пост. Картинку сохраняет вызывающий код,
// imagePath - путь уже сохраненного файла или пустая строка.
func (f *PostForm) Apply(post *domain.Post, imagePath string) {
	post.Text = f.Text
	post.GroupID = f.GroupID
	switch {
	case imagePath != "":
		post.Image = imagePath
	case f.ClearImage:
		post.Image = ""
	}
}

func readImage(fh *multipart.FileHeader) (*Image, error) {
	if fh.Size > MaxImageSize {
		return nil, errors.NotValidf("image larger than %d bytes", MaxImageSize)
	}
	file, err := fh.Open()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return DecodeImage(data)
}

// DecodeImage проверяет, что данные - картинка поддерживаемого формата.
func DecodeImage(data []byte) (*Image, error) {
	if len(data) > MaxImageSize {
		return nil, errors.NotValidf("image larger than %d bytes", MaxImageSize)
	}
	mtype := mimetype.Detect(data)
	if !imageTypes[mtype.String()] {
		return nil, errors.NotValidf("image type %s", mtype.String())
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.NewNotValid(err, "image")
	}
	return &Image{Data: data, Ext: mtype.Extension()}, nil
}
