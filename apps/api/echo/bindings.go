package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

const (
	orderingParam = "ordering"
	pageParam     = "page"
	pageSizeParam = "page_size"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindPagination reads `page` & `page_size`. Invalid values fall back to the defaults.
func bindPagination(ctx echo.Context) core.Pagination {
	page, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	size, _ := strconv.Atoi(ctx.QueryParam(pageSizeParam))
	return core.NewPagination(page, size)
}

// PaginatedResponse wraps one page of a listing.
type PaginatedResponse struct {
	Data        interface{} `json:"data"`
	TotalRows   int         `json:"total_rows"`
	TotalPages  int         `json:"total_pages"`
	CurrentPage int         `json:"current_page"`
	PageSize    int         `json:"page_size"`
}

func newPaginatedResponse(data interface{}, total int, page core.Pagination) PaginatedResponse {
	return PaginatedResponse{
		Data:        data,
		TotalRows:   total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Page,
		PageSize:    page.PageSize,
	}
}
