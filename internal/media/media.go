// Package media сохраняет загруженные файлы на диск.
package media

import (
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// PostsDir - подкаталог для картинок постов.
const PostsDir = "posts"

// Store хранит файлы в каталоге Root.
type Store struct {
	Root string
}

// New создает хранилище и каталог под картинки постов.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, PostsDir), 0o755); err != nil {
		return nil, errors.Annotatef(err, "creating media root %q", root)
	}
	return &Store{Root: root}, nil
}

// SavePostImage записывает картинку под случайным именем и возвращает путь
// относительно Root, например "posts/<uuid>.png".
func (s *Store) SavePostImage(data []byte, ext string) (string, error) {
	rel := path.Join(PostsDir, uuid.NewString()+ext)
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", errors.Annotate(err, "saving post image")
	}
	return rel, nil
}

// Remove удаляет ранее сохраненный файл. Отсутствующий файл не ошибка.
func (s *Store) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(path.Clean("/"+rel))))
	if err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}
