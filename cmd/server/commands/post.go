package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/media"
	"github.com/UkralStul/yatube/internal/storage"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Модерация постов",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if cfg.Storage == config.StorageInMemory {
			log.Warn("in-memory storage: changes are lost when the command exits")
		}
		return nil
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Удалить пост вместе с комментариями и картинкой",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return errors.NotValidf("post id %q", args[0])
		}
		mediaStore, err := media.New(cfg.MediaRoot)
		if err != nil {
			return errors.Trace(err)
		}
		return withStore(func(store storage.Storage) error {
			return deletePost(cmd.Context(), store, mediaStore, uint(id), cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.AddCommand(postDeleteCmd)
}

// deletePost удаляет пост, затем файл его картинки. Если файл удалить не
// вышло, пост уже удалён и ошибка только пишется в лог.
func deletePost(ctx context.Context, store storage.Storage, mediaStore *media.Store, id uint, out io.Writer) error {
	post, err := store.GetPostByID(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	if err := store.DeletePost(ctx, id); err != nil {
		return errors.Trace(err)
	}
	if post.Image != "" {
		if err := mediaStore.Remove(post.Image); err != nil {
			log.WithError(err).WithField("image", post.Image).Warn("failed to remove post image")
		}
	}
	fmt.Fprintf(out, "deleted post %d\n", id)
	return nil
}
