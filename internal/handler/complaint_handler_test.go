package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// complaintForm builds a multipart body; photoName "" sends no file
func complaintForm(t *testing.T, fields map[string]string, photoName string, photo []byte) (string, *bytes.Buffer) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photoName != "" {
		part, err := mw.CreateFormFile("photo", photoName)
		require.NoError(t, err)
		_, err = part.Write(photo)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), body
}

func validComplaintFields() map[string]string {
	return map[string]string{
		"category":             "road",
		"description":          "Pothole <b>near</b> the school",
		"location":             "Main St 12",
		"location_description": "left lane",
	}
}

func TestSubmitComplaint(t *testing.T) {
	app := newTestApp(t)
	app.seedUser(t, "citizen", "citizen@example.com", "secret1", entity.RoleUser)
	b := app.browser(t)
	b.login("citizen", "secret1")

	t.Run("with photo", func(t *testing.T) {
		ct, body := complaintForm(t, validComplaintFields(), "pothole.JPG", []byte("fake-jpeg"))
		w := b.post("/complaints", ct, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		complaint := decodeJSON(t, w)["complaint"].(map[string]interface{})
		assert.Equal(t, "ROAD", complaint["category"])
		assert.Equal(t, "SUBMITTED", complaint["status"])
		assert.Equal(t, "Pothole near the school", complaint["description"])

		photo := complaint["photo"].(string)
		assert.Equal(t, ".jpg", filepath.Ext(photo))
		assert.NotContains(t, photo, "pothole")
		stored, err := os.ReadFile(filepath.Join(app.uploadDir, photo))
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-jpeg"), stored)
	})

	t.Run("without photo", func(t *testing.T) {
		ct, body := complaintForm(t, validComplaintFields(), "", nil)
		w := b.post("/complaints", ct, body)
		require.Equal(t, http.StatusCreated, w.Code)
		_, hasPhoto := decodeJSON(t, w)["complaint"].(map[string]interface{})["photo"]
		assert.False(t, hasPhoto)
	})

	t.Run("rejected extension", func(t *testing.T) {
		ct, body := complaintForm(t, validComplaintFields(), "script.exe", []byte("MZ"))
		w := b.post("/complaints", ct, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("photo too large", func(t *testing.T) {
		ct, body := complaintForm(t, validComplaintFields(), "big.png", bytes.Repeat([]byte{1}, (1<<20)+1))
		w := b.post("/complaints", ct, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid category removes the stored photo", func(t *testing.T) {
		fields := validComplaintFields()
		fields["category"] = "weather"
		ct, body := complaintForm(t, fields, "photo.png", []byte("png"))
		before, err := os.ReadDir(app.uploadDir)
		require.NoError(t, err)

		w := b.post("/complaints", ct, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decodeJSON(t, w)["error_type"])

		after, err := os.ReadDir(app.uploadDir)
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	w := b.get("/dashboard", "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, float64(2), body["complaint_count"])
	assert.Len(t, body["complaints"], 2)
}

func TestGetComplaint_OwnerOnly(t *testing.T) {
	app := newTestApp(t)
	owner := app.seedUser(t, "owner", "owner@example.com", "secret1", entity.RoleUser)
	app.seedUser(t, "other", "other@example.com", "secret1", entity.RoleUser)
	complaint := &entity.Complaint{UserID: owner.ID, Category: entity.CategoryWater, Description: "leak", Location: "Elm", Status: entity.StatusSubmitted}
	require.NoError(t, app.complaints.Create(complaint))

	ownerBrowser := app.browser(t)
	ownerBrowser.login("owner", "secret1")
	w := ownerBrowser.get(fmt.Sprintf("/complaints/%d", complaint.ID), "Accept", "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	otherBrowser := app.browser(t)
	otherBrowser.login("other", "secret1")
	w = otherBrowser.get(fmt.Sprintf("/complaints/%d", complaint.ID), "Accept", "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ownerBrowser.get("/complaints/abc", "Accept", "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_param", decodeJSON(t, w)["error_type"])
}

func TestComplaintPhoto_OwnerOrAdmin(t *testing.T) {
	app := newTestApp(t)
	owner := app.seedUser(t, "owner", "owner@example.com", "secret1", entity.RoleUser)
	app.seedUser(t, "other", "other@example.com", "secret1", entity.RoleUser)
	app.seedUser(t, "admin", "admin@example.com", "secret1", entity.RoleAdmin)

	require.NoError(t, os.WriteFile(filepath.Join(app.uploadDir, "p1.png"), []byte("png-bytes"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(app.uploadDir, "stray.png"), []byte("stray"), 0o600))
	complaint := &entity.Complaint{UserID: owner.ID, Category: entity.CategoryRoad, Description: "hole", Location: "Elm", Photo: "p1.png", Status: entity.StatusSubmitted}
	require.NoError(t, app.complaints.Create(complaint))

	anonymous := app.browser(t)
	w := anonymous.get("/uploads/p1.png", "Accept", "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ownerBrowser := app.browser(t)
	ownerBrowser.login("owner", "secret1")
	w = ownerBrowser.get("/uploads/p1.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "private")

	// files no complaint references are never served
	w = ownerBrowser.get("/uploads/stray.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ownerBrowser.get("/uploads/notes.txt")
	assert.Equal(t, http.StatusNotFound, w.Code)

	otherBrowser := app.browser(t)
	otherBrowser.login("other", "secret1")
	w = otherBrowser.get("/uploads/p1.png")
	assert.Equal(t, http.StatusNotFound, w.Code)

	adminBrowser := app.browser(t)
	adminBrowser.login("admin", "secret1")
	w = adminBrowser.get("/uploads/p1.png")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	app := newTestApp(t)
	app.seedUser(t, "citizen", "citizen@example.com", "secret1", entity.RoleUser)
	b := app.browser(t)

	w := b.get("/admin/complaints", "Accept", "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	b.login("citizen", "secret1")
	w = b.get("/admin/complaints", "Accept", "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeJSON(t, w)["error_type"])
}

func TestAdminWorkflow(t *testing.T) {
	app := newTestApp(t)
	citizen := app.seedUser(t, "citizen", "citizen@example.com", "secret1", entity.RoleUser)
	app.seedUser(t, "admin", "admin@example.com", "secret1", entity.RoleAdmin)

	first := &entity.Complaint{UserID: citizen.ID, Category: entity.CategoryRoad, Description: "=HYPERLINK(\"x\")", Location: "Main", Status: entity.StatusSubmitted}
	second := &entity.Complaint{UserID: citizen.ID, Category: entity.CategoryWater, Description: "leak", Location: "Elm", Status: entity.StatusSubmitted}
	require.NoError(t, app.complaints.Create(first))
	require.NoError(t, app.complaints.Create(second))

	b := app.browser(t)
	b.login("admin", "secret1")

	w := b.get("/admin/complaints", "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeJSON(t, w)["total"])

	w = b.get("/admin/complaints?status=bogus", "Accept", "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get(fmt.Sprintf("/admin/complaints/%d", first.ID), "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "citizen", decodeJSON(t, w)["user"].(map[string]interface{})["username"])

	t.Run("assign moves to in progress", func(t *testing.T) {
		w := b.postJSON(fmt.Sprintf("/admin/complaints/%d/assign", first.ID), `{"vendor_id":7}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeJSON(t, w)
		assert.Equal(t, "IN_PROGRESS", body["status"])
		assert.Equal(t, float64(7), body["assigned_vendor_id"])
	})

	t.Run("assign without vendor", func(t *testing.T) {
		w := b.postJSON(fmt.Sprintf("/admin/complaints/%d/assign", first.ID), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("status update with notes", func(t *testing.T) {
		w := b.postForm(fmt.Sprintf("/admin/complaints/%d/status", first.ID), url.Values{"status": {"completed"}, "notes": {"Fixed"}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeJSON(t, w)
		assert.Equal(t, "COMPLETED", body["status"])
		assert.Equal(t, "Fixed", body["admin_notes"])
	})

	t.Run("final status cannot change", func(t *testing.T) {
		w := b.postJSON(fmt.Sprintf("/admin/complaints/%d/status", first.ID), `{"status":"IN_PROGRESS"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown complaint", func(t *testing.T) {
		w := b.postJSON("/admin/complaints/999/status", `{"status":"REJECTED"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("filtered list", func(t *testing.T) {
		w := b.get("/admin/complaints?status=submitted", "Accept", "application/json")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decodeJSON(t, w)["total"])
	})

	t.Run("export", func(t *testing.T) {
		w := b.get("/admin/complaints/export")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "complaints_all_")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Complaints")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "ID", rows[0][0])

		// newest first: second, then first
		assert.Equal(t, "leak", rows[1][8])
		assert.Equal(t, "'=HYPERLINK(\"x\")", rows[2][8])
		assert.Equal(t, "COMPLETED", rows[2][5])
		assert.Equal(t, "citizen@example.com", rows[2][3])
	})
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "complaints_all_20240102_150405.xlsx", exportFilename("", now))
	assert.Equal(t, "complaints_in-progress_20240102_150405.xlsx", exportFilename("IN_PROGRESS", now))
	assert.Equal(t, "complaints_completed_20240102_150405.xlsx", exportFilename(" Completed ", now))
}

func TestSanitizeForExcel(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"plain":       "plain",
		"=SUM(A1:A2)": "'=SUM(A1:A2)",
		"+1":          "'+1",
		"-1":          "'-1",
		"@cmd":        "'@cmd",
		"\tx":         "'\tx",
		"a=b":         "a=b",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeForExcel(in), "input %q", in)
	}
}
