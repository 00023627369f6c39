package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/UkralStul/yatube/internal/config"
	"github.com/UkralStul/yatube/internal/domain"
	"github.com/UkralStul/yatube/internal/storage"
)

var (
	// Флаги команд group
	groupTitle       string
	groupDescription string
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Управление группами",
	Long: `Создание, просмотр и удаление групп (сообществ), к которым относятся посты.

Примеры:
  yatube group create cats --title "Котики" --description "Всё о котах"
  yatube group list
  yatube group delete cats`,
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

var groupCreateCmd = &cobra.Command{
	Use:   "create <slug>",
	Short: "Создать группу",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !domain.ValidSlug(args[0]) {
			return errors.NotValidf("slug %q: only latin letters, digits, '-' and '_', up to 50 characters", args[0])
		}
		if groupTitle == "" {
			return errors.NotValidf("empty --title")
		}
		if len([]rune(groupTitle)) > 200 {
			return errors.NotValidf("title longer than 200 characters")
		}
		return withStore(func(store storage.Storage) error {
			g, err := store.CreateGroup(cmd.Context(), &domain.Group{
				Title:       groupTitle,
				Slug:        args[0],
				Description: groupDescription,
			})
			if err != nil {
				return errors.Trace(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created group %d %s\n", g.ID, g.Slug)
			return nil
		})
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список групп с числом постов",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Storage) error {
			groups, err := store.ListGroups(cmd.Context())
			if err != nil {
				return errors.Trace(err)
			}
			for _, g := range groups {
				n, err := store.CountPosts(cmd.Context(), storage.PostFilter{GroupID: &g.ID})
				if err != nil {
					return errors.Trace(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-40s %s posts\n", g.Slug, g.Title, humanize.Comma(int64(n)))
			}
			return nil
		})
	},
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Удалить группу; её посты остаются без группы",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store storage.Storage) error {
			g, err := store.GetGroupBySlug(cmd.Context(), args[0])
			if err != nil {
				return errors.Trace(err)
			}
			if err := store.DeleteGroup(cmd.Context(), g.ID); err != nil {
				return errors.Trace(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted group %s\n", g.Slug)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd, groupListCmd, groupDeleteCmd)

	groupCreateCmd.Flags().StringVar(&groupTitle, "title", "", "Название группы (обязательно)")
	groupCreateCmd.Flags().StringVar(&groupDescription, "description", "", "Описание группы")
}

func withStore(fn func(storage.Storage) error) error {
	store, closeStore, err := openStore(false)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeStore()
	return fn(store)
}
