package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"

	"gowa-keeper/internal/service"
)

func pageOptions(c echo.Context) service.PageOptions {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return service.PageOptions{
		Limit:  limit,
		Offset: offset,
		Enrich: c.QueryParam("enrich") == "true",
	}
}

// GET /instances/:instanceId/chats
func (a *API) GetChats(c echo.Context) error {
	page, err := a.Manager.GetChats(c.Request().Context(), c.Param("instanceId"), pageOptions(c))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Chat list retrieved successfully", page)
}

// GET /instances/:instanceId/contacts
func (a *API) GetContacts(c echo.Context) error {
	page, err := a.Manager.GetContacts(c.Request().Context(), c.Param("instanceId"), pageOptions(c))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Contact list retrieved successfully", page)
}

// GET /instances/:instanceId/groups
func (a *API) GetGroups(c echo.Context) error {
	page, err := a.Manager.GetGroups(c.Request().Context(), c.Param("instanceId"), pageOptions(c))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Group list retrieved successfully", page)
}

// GET /instances/:instanceId/chats/:chatId/messages
func (a *API) GetChatMessages(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	messages, err := a.Manager.GetChatMessages(c.Request().Context(), c.Param("instanceId"), c.Param("chatId"), limit)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Messages retrieved successfully", map[string]interface{}{
		"chatId":   c.Param("chatId"),
		"count":    len(messages),
		"messages": messages,
	})
}

// GET /instances/:instanceId/contacts/:contactId
func (a *API) GetContactProfile(c echo.Context) error {
	profile, err := a.Manager.GetContactProfile(c.Request().Context(), c.Param("instanceId"), c.Param("contactId"))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Contact details retrieved successfully", profile)
}

type multipleProfilesRequest struct {
	ContactIDs []string `json:"contactIds"`
}

// POST /instances/:instanceId/contacts/profiles
func (a *API) GetMultipleContactProfiles(c echo.Context) error {
	var req multipleProfilesRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, 400, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if len(req.ContactIDs) == 0 {
		return ErrorResponse(c, 400, "Field 'contactIds' is required", "VALIDATION_ERROR", "")
	}

	profiles, err := a.Manager.GetMultipleContactProfiles(c.Request().Context(), c.Param("instanceId"), req.ContactIDs)
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Contact profiles retrieved successfully", map[string]interface{}{
		"count":    len(profiles),
		"profiles": profiles,
	})
}

// GET /instances/:instanceId/groups/:groupId
func (a *API) GetGroupInfo(c echo.Context) error {
	info, err := a.Manager.GetGroupInfo(c.Request().Context(), c.Param("instanceId"), c.Param("groupId"))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Group info retrieved successfully", info)
}

// GET /instances/:instanceId/contacts/:contactId/about
func (a *API) GetContactAbout(c echo.Context) error {
	about, err := a.Manager.GetContactAbout(c.Request().Context(), c.Param("instanceId"), c.Param("contactId"))
	if err != nil {
		return serviceError(c, err)
	}
	return SuccessResponse(c, 200, "Contact about retrieved successfully", map[string]interface{}{
		"contactId": c.Param("contactId"),
		"about":     about,
	})
}

// GET /instances/:instanceId/contacts/export?format=xlsx|csv
func (a *API) ExportContacts(c echo.Context) error {
	instanceID := c.Param("instanceId")

	// Export always walks the full list, page by page.
	var all []service.ChatView
	offset := 0
	for {
		page, err := a.Manager.GetContacts(c.Request().Context(), instanceID, service.PageOptions{Limit: 200, Offset: offset})
		if err != nil {
			return serviceError(c, err)
		}
		all = append(all, page.Chats...)
		if !page.HasMore {
			break
		}
		offset += page.Limit
	}

	filename := fmt.Sprintf("contacts_%s_%s", instanceID, time.Now().Format("20060102_150405"))

	if c.QueryParam("format") == "csv" {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"ID", "Name", "LastMessageAt"})
		for _, contact := range all {
			_ = w.Write([]string{contact.ID, contact.Name, strconv.FormatInt(contact.LastMessageAt, 10)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return ErrorResponse(c, 500, "Failed to build CSV", "EXPORT_FAILED", err.Error())
		}
		c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		return c.Blob(200, "text/csv", buf.Bytes())
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "ID")
	_ = f.SetCellValue(sheet, "B1", "Name")
	_ = f.SetCellValue(sheet, "C1", "LastMessageAt")
	for i, contact := range all {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), contact.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), contact.Name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), contact.LastMessageAt)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return ErrorResponse(c, 500, "Failed to build workbook", "EXPORT_FAILED", err.Error())
	}
	c.Response().Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
	return c.Blob(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
