package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/mazoezi/apps/api/echo"
	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func createUser(t *testing.T, repo user.Repository, name, email, pwd, role, ojtStart string, schedule []int) user.User {
	usr := user.User{
		Name:         name,
		Email:        email,
		Role:         role,
		WorkSchedule: schedule,
	}
	usr.SetActive(true)
	if ojtStart != "" {
		start, err := time.Parse(journal.DateLayout, ojtStart)
		if err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
		usr.OJTStart = null.TimeFrom(start)
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func createEntry(t *testing.T, repo journal.Repository, usr user.User, date, content string, submitted, reviewed bool) journal.Entry {
	var ojtStart time.Time
	if usr.OJTStart.Valid {
		ojtStart = usr.OJTStart.Time
	}
	day, err := time.Parse(journal.DateLayout, date)
	if err != nil {
		t.Fatalf("createEntry() failed: %v", err)
	}
	entry := journal.Entry{
		ID:        journal.EntryID(usr.ID, date),
		UserID:    usr.ID,
		Date:      date,
		Week:      journal.WeekNumber(day, ojtStart),
		Content:   content,
		Submitted: submitted,
		Reviewed:  reviewed,
		UpdatedAt: testNow,
	}
	if submitted {
		entry.SubmittedAt = null.TimeFrom(testNow)
	}
	entry, err = repo.SaveEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("createEntry() failed: %v", err)
	}
	return entry
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
