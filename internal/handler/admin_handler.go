package handler

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/middleware"
	"github.com/yourusername/complaint-tracker/internal/service"
)

// AdminHandler serves the complaint workflow for administrators
type AdminHandler struct {
	complaintService *service.ComplaintService
}

func NewAdminHandler(complaintService *service.ComplaintService) *AdminHandler {
	return &AdminHandler{complaintService: complaintService}
}

// AssignVendorRequest is the body of POST /admin/complaints/:id/assign
type AssignVendorRequest struct {
	VendorID uint `form:"vendor_id" json:"vendor_id" binding:"required"`
}

// UpdateStatusRequest is the body of POST /admin/complaints/:id/status
type UpdateStatusRequest struct {
	Status string `form:"status" json:"status" binding:"required"`
	Notes  string `form:"notes" json:"notes"`
}

// ListComplaints returns every complaint, optionally filtered by ?status=
func (h *AdminHandler) ListComplaints(c *gin.Context) {
	complaints, err := h.complaintService.List(c.Query("status"))
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"complaints": complaints,
		"total":      len(complaints),
	})
}

// GetComplaint returns any complaint with its owner
func (h *AdminHandler) GetComplaint(c *gin.Context) {
	complaint, err := h.complaintService.Get(c.GetUint("complaintID"))
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// AssignVendor records the vendor handling the complaint
func (h *AdminHandler) AssignVendor(c *gin.Context) {
	var req AssignVendorRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor_id is required", "error_type": "validation_error"})
		return
	}

	complaint, err := h.complaintService.AssignVendor(c.Request.Context(), c.GetUint("complaintID"), req.VendorID)
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	log.Printf("[AdminHandler] admin ID=%d assigned vendor ID=%d to complaint ID=%d", c.GetUint(middleware.ContextUserID), req.VendorID, complaint.ID)
	c.JSON(http.StatusOK, complaint)
}

// UpdateStatus moves the complaint through its workflow
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required", "error_type": "validation_error"})
		return
	}

	complaint, err := h.complaintService.UpdateStatus(c.Request.Context(), c.GetUint("complaintID"), req.Status, req.Notes)
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	log.Printf("[AdminHandler] admin ID=%d set complaint ID=%d to %s", c.GetUint(middleware.ContextUserID), complaint.ID, complaint.Status)
	c.JSON(http.StatusOK, complaint)
}

// ExportComplaints streams the (optionally filtered) complaints as XLSX
func (h *AdminHandler) ExportComplaints(c *gin.Context) {
	complaints, err := h.complaintService.List(c.Query("status"))
	if err != nil {
		handleComplaintError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Complaints"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	headers := []interface{}{"ID", "Submitted", "Citizen", "Email", "Category", "Status", "Location", "Location details", "Description", "Vendor", "Admin notes"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] failed to write header row: %v", err)
	}

	for i, complaint := range complaints {
		rowNum := i + 2
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), complaintRow(complaint)); err != nil {
			log.Printf("[AdminHandler] failed to write row %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] failed to flush stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", exportFilename(c.Query("status"), time.Now())))
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] failed to write Excel response: %v", err)
	}
}

// exportFilename names the download after the status filter,
// e.g. complaints_in-progress_20240102_150405.xlsx
func exportFilename(status string, now time.Time) string {
	scope := slug.Make(strings.ReplaceAll(status, "_", " "))
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("complaints_%s_%s.xlsx", scope, now.Format("20060102_150405"))
}

func complaintRow(complaint entity.Complaint) []interface{} {
	citizen, email := "", ""
	if complaint.User != nil {
		citizen = complaint.User.Username
		email = complaint.User.Email
	}
	vendor := ""
	if complaint.AssignedVendorID != nil {
		vendor = fmt.Sprintf("%d", *complaint.AssignedVendorID)
	}
	return []interface{}{
		complaint.ID,
		complaint.CreatedAt.Format("2006-01-02 15:04"),
		sanitizeForExcel(citizen),
		sanitizeForExcel(email),
		string(complaint.Category),
		string(complaint.Status),
		sanitizeForExcel(complaint.Location),
		sanitizeForExcel(complaint.LocationDescription),
		sanitizeForExcel(complaint.Description),
		vendor,
		sanitizeForExcel(complaint.AdminNotes),
	}
}

// sanitizeForExcel neutralises cells that a spreadsheet would read as a formula
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
