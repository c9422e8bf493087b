// Admin endpoints, read-only:
//   - GET /groups                      (groups holding nicknames)
//   - GET /groups/{id}/nicknames       (paginated, weak ETag)
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nickname-bot/internal/domain"
	"github.com/tbourn/go-nickname-bot/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListGroupsResponse lists every group that holds nicknames.
type ListGroupsResponse struct {
	Groups []domain.GroupSummary `json:"groups"`
	Total  int                   `json:"total"`
}

// ListNicknamesResponse wraps one page of a group's nicknames.
type ListNicknamesResponse struct {
	GroupID    int64                   `json:"group_id"`
	Nicknames  []domain.NicknameRecord `json:"nicknames"`
	Pagination Pagination              `json:"pagination"`
}

// ListGroups godoc
// @ID          listGroups
// @Summary     List groups holding nicknames
// @Description Returns every group with at least one nickname and its record count.
// @Tags        Admin
// @Produce     json
//
// @Success     200  {object}  handlers.ListGroupsResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Storage unavailable"
// @Router      /groups [get]
func (h *Handlers) ListGroups(c *gin.Context) {
	groups, err := h.svc.Groups(c.Request.Context())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListGroupsResponse{Groups: groups, Total: len(groups)})
}

// ListNicknames godoc
// @ID          listNicknames
// @Summary     List a group's nicknames (paginated)
// @Description Returns a page of nicknames, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Admin
// @Produce     json
//
// @Param       id             path    int     true  "Group ID (negative for groups)"  example(-1001234567890)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"      example(W/\"nicknames:-1001:1:20:2:abc\")
// @Param       page           query   int     false "Page number"                     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"                  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListNicknamesResponse
// @Header      200  {string} ETag  "Weak ETag for current page"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid group id"
// @Failure     503  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /groups/{id}/nicknames [get]
func (h *Handlers) ListNicknames(c *gin.Context) {
	groupID, valid := utils.ParseGroupID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeInvalidGroup, "group id must be a non-zero integer")
		return
	}
	page, pageSize := utils.ClampPage(c.Query("page"), c.Query("page_size"))

	recs, total, err := h.svc.ListPage(c.Request.Context(), groupID, page, pageSize)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeListFailed, err.Error())
		return
	}

	etag := pageETag(groupID, page, pageSize, total, recs)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListNicknamesResponse{
		GroupID:   groupID,
		Nicknames: recs,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// pageETag hashes the page content. AddedAt survives a nickname change, so
// timestamps alone cannot version a page.
func pageETag(groupID int64, page, pageSize int, total int64, recs []domain.NicknameRecord) string {
	h := fnv.New64a()
	for _, r := range recs {
		h.Write([]byte(strconv.FormatInt(r.UserID, 10)))
		h.Write([]byte{0})
		h.Write([]byte(r.Username))
		h.Write([]byte{0})
		h.Write([]byte(r.Nickname))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(r.AddedAt.UnixNano(), 10)))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf(`W/"nicknames:%d:%d:%d:%d:%x"`, groupID, page, pageSize, total, h.Sum64())
}
