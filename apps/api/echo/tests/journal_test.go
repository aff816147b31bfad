package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
	emailsvc "github.com/trezcool/mazoezi/services/email"
)

func Test_journalApi_save(t *testing.T) {
	env := setup(t)

	student := createUser(t, env.usrRepo, "Awa Diop", "awadiop@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	reviewed := createEntry(t, env.jnlRepo, student, "2024-01-02", "did things", true, true)
	token := getToken(t, student)

	if _, err := env.jnlRepo.SetOverride(context.Background(), journal.Override{Date: "2024-01-13", IsWorkday: true}); err != nil {
		t.Fatalf("SetOverride() failed: %v", err)
	}

	entry := func(date string, week int, content string, submitted bool) journal.Entry {
		e := journal.Entry{
			ID:        journal.EntryID(student.ID, date),
			UserID:    student.ID,
			Date:      date,
			Week:      week,
			Content:   content,
			Submitted: submitted,
			UpdatedAt: testNow,
		}
		if submitted {
			e.SubmittedAt = null.TimeFrom(testNow)
		}
		return e
	}
	body := func(date, content string, submitted bool) []byte {
		return marchallObj(t, journal.NewEntry{Date: date, Content: content, Submitted: submitted})
	}

	tests := []httpTest{
		{
			name: "Auth required", body: body("2024-01-03", "lol", false),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Date required", body: marchallObj(t, journal.NewEntry{Content: "lol"}), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "this field is required"}),
		},
		{
			name: "Invalid date", body: body("lol", "lol", false), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "must be a date in YYYY-MM-DD format"}),
		},
		{
			name: "Draft on workday", body: body("2024-01-03", "wip", false), token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, entry("2024-01-03", 1, "wip", false)),
		},
		{
			name: "Submit on workday", body: body("2024-01-08", "done", true), token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, entry("2024-01-08", 2, "done", true)),
		},
		{
			name: "Submit on weekend", body: body("2024-01-06", "nope", true), token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "this date is not part of the OJT schedule"}),
		},
		{
			name: "Draft on weekend", body: body("2024-01-06", "extra", false), token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, entry("2024-01-06", 1, "extra", false)),
		},
		{
			name: "Submit on overridden weekend", body: body("2024-01-13", "makeup", true), token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, entry("2024-01-13", 2, "makeup", true)),
		},
		{
			name: "Reviewed journal is locked", body: body(reviewed.Date, "rewrite", true), token: token,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "cannot edit a journal that has already been reviewed"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/journals", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_journalApi_list(t *testing.T) {
	env := setup(t)

	student := createUser(t, env.usrRepo, "Awa Diop", "awadiop@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	other := createUser(t, env.usrRepo, "Ben Mwamba", "benmwamba@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	admin := createUser(t, env.usrRepo, "Eve Kabila", "evekabila@test.cd", "", user.RoleAdmin, "", nil)

	e1 := createEntry(t, env.jnlRepo, student, "2024-01-02", "day one", true, false)
	e2 := createEntry(t, env.jnlRepo, student, "2024-01-03", "day two", false, false)
	e3 := createEntry(t, env.jnlRepo, student, "2024-01-04", "day three", true, true)

	studentToken := getToken(t, student)
	otherToken := getToken(t, other)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/journals", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Own journals, date descending", path: "/v1/journals", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, e3, e2, e1),
		},
		{
			name: "Own journals by date", path: "/v1/journals?date=2024-01-02", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, e1),
		},
		{
			name: "Own journals by date (absent)", path: "/v1/journals?date=2024-01-05", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Own journals (none)", path: "/v1/journals", token: otherToken,
			wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...),
		},
		{
			name: "Another student's journals are hidden", path: "/v1/journals/" + student.ID, token: otherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Own journals via detail path", path: "/v1/journals/" + student.ID, token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, e3, e2, e1),
		},
		{
			name: "Admin reads any student's journals", path: "/v1/journals/" + student.ID, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, e3, e2, e1),
		},
		{
			name: "Admin reads by date", path: "/v1/journals/" + student.ID + "?date=2024-01-03", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, e2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_journalApi_progress(t *testing.T) {
	env := setup(t)

	// OJT started Mon 2024-01-01; today is Mon 2024-01-08.
	student := createUser(t, env.usrRepo, "Awa Diop", "awadiop@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	other := createUser(t, env.usrRepo, "Ben Mwamba", "benmwamba@test.cd", "", user.RoleStudent, "", nil)
	admin := createUser(t, env.usrRepo, "Eve Kabila", "evekabila@test.cd", "", user.RoleAdmin, "", nil)

	e1 := createEntry(t, env.jnlRepo, student, "2024-01-02", "day one", true, false)
	e2 := createEntry(t, env.jnlRepo, student, "2024-01-03", "day two", false, false) // draft does not count
	e3 := createEntry(t, env.jnlRepo, student, "2024-01-04", "day three", true, false)

	progress := journal.Progress{
		TotalSubmitted: 2,
		TotalMissing:   4,
		MissingDates:   []string{"2024-01-01", "2024-01-03", "2024-01-05", "2024-01-08"},
		Journals:       []journal.Entry{e3, e2, e1},
		User:           student,
	}
	noStart := journal.Progress{
		MissingDates: []string{},
		Journals:     []journal.Entry{},
		User:         other,
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/journals/progress", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Own progress", path: "/v1/journals/progress", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallObj(t, progress),
		},
		{
			name: "No OJT start date", path: "/v1/journals/progress", token: getToken(t, other),
			wantCode: http.StatusOK, wantData: marchallObj(t, noStart),
		},
		{
			name: "Another student's progress is hidden", path: "/v1/journals/" + student.ID + "/progress", token: getToken(t, other),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Admin reads any student's progress", path: "/v1/journals/" + student.ID + "/progress", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, progress),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_journalApi_review(t *testing.T) {
	env := setup(t)

	student := createUser(t, env.usrRepo, "Awa Diop", "awadiop@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	admin := createUser(t, env.usrRepo, "Eve Kabila", "evekabila@test.cd", "", user.RoleAdmin, "", nil)
	entry := createEntry(t, env.jnlRepo, student, "2024-01-02", "day one", true, false)
	adminToken := getToken(t, admin)

	reviewed := entry
	reviewed.Reviewed = true
	reviewed.Remarks = "keep it up"

	body := marchallObj(t, journal.ReviewEntry{UserID: student.ID, Date: entry.Date, Remarks: "keep it up"})
	tests := []httpTest{
		{name: "Auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", body: body, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Unknown journal", token: adminToken,
			body:     marchallObj(t, journal.ReviewEntry{UserID: student.ID, Date: "2024-01-05"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "journal not found"}),
		},
		{
			name: "Review", body: body, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, reviewed), extra: 1, // 1 email to the student
		},
		{
			name: "Review is idempotent", body: body, token: adminToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, reviewed), extra: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentBefore := len(emailsvc.SentMessages)

			req, rec := newAuthRequest(http.MethodPost, "/v1/journals/review", tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			wantSent, _ := tt.extra.(int)
			if sent := len(emailsvc.SentMessages) - sentBefore; sent != wantSent {
				t.Errorf("sent emails = %d, want %d", sent, wantSent)
			}
			if wantSent > 0 {
				msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
				if len(msg.To) != 1 || msg.To[0].Address != student.Email {
					t.Errorf("email recipient = %v, want %s", msg.To, student.Email)
				}
			}
		})
	}
}

func Test_journalApi_workdays(t *testing.T) {
	env := setup(t)

	student := createUser(t, env.usrRepo, "Awa Diop", "awadiop@test.cd", "", user.RoleStudent, "2024-01-01", nil)
	admin := createUser(t, env.usrRepo, "Eve Kabila", "evekabila@test.cd", "", user.RoleAdmin, "", nil)
	adminToken := getToken(t, admin)

	holiday := journal.Override{Date: "2024-01-04"}
	makeup := journal.Override{Date: "2024-01-06", IsWorkday: true}

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/journals/workdays", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", method: http.MethodGet, path: "/v1/journals/workdays", token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "No overrides", method: http.MethodGet, path: "/v1/journals/workdays", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...),
		},
		{
			name: "Invalid date", method: http.MethodPut, path: "/v1/journals/workdays", token: adminToken,
			body:     marchallObj(t, journal.NewOverride{Date: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"date": "must be a date in YYYY-MM-DD format"}),
		},
		{
			name: "Mark day off", method: http.MethodPut, path: "/v1/journals/workdays", token: adminToken,
			body:     marchallObj(t, journal.NewOverride{Date: holiday.Date}),
			wantCode: http.StatusOK, wantData: marchallObj(t, holiday),
		},
		{
			name: "Mark workday", method: http.MethodPut, path: "/v1/journals/workdays", token: adminToken,
			body:     marchallObj(t, journal.NewOverride{Date: makeup.Date, IsWorkday: true}),
			wantCode: http.StatusOK, wantData: marchallObj(t, makeup),
		},
		{
			name: "All overrides, date ascending", method: http.MethodGet, path: "/v1/journals/workdays", token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, holiday, makeup),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
