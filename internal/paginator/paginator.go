// Package paginator делит упорядоченную выборку на страницы фиксированного размера.
package paginator

import (
	"strconv"
	"strings"

	"github.com/UkralStul/yatube/internal/storage"
)

// Page - одна страница выборки. Номера страниц начинаются с единицы.
type Page struct {
	Number   int
	NumPages int
	PerPage  int
	Count    int
}

// New возвращает страницу с номером raw для выборки из count элементов.
// Нечисловой номер или номер меньше 1 дают первую страницу, номер больше
// последнего - последнюю. У пустой выборки одна пустая страница.
func New(count, perPage int, raw string) Page {
	if perPage < 1 {
		perPage = 1
	}
	if count < 0 {
		count = 0
	}
	numPages := (count + perPage - 1) / perPage
	if numPages == 0 {
		numPages = 1
	}

	number, err := strconv.Atoi(strings.TrimSpace(raw))
	switch {
	case err != nil, number < 1:
		number = 1
	case number > numPages:
		number = numPages
	}

	return Page{Number: number, NumPages: numPages, PerPage: perPage, Count: count}
}

// Offset - индекс первого элемента страницы.
func (p Page) Offset() int { return (p.Number - 1) * p.PerPage }

// Args переводит страницу в аргументы запроса к хранилищу.
func (p Page) Args() storage.PaginationArgs {
	return storage.PaginationArgs{Limit: p.PerPage, Offset: p.Offset()}
}

func (p Page) HasPrevious() bool { return p.Number > 1 }
func (p Page) HasNext() bool     { return p.Number < p.NumPages }
func (p Page) HasOther() bool    { return p.HasPrevious() || p.HasNext() }

func (p Page) PreviousNumber() int { return p.Number - 1 }
func (p Page) NextNumber() int     { return p.Number + 1 }

// Range возвращает номера всех страниц для шаблона.
func (p Page) Range() []int {
	r := make([]int, p.NumPages)
	for i := range r {
		r[i] = i + 1
	}
	return r
}
