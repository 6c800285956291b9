package tasks_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/moodle"
	"github.com/lumeo/edugate/internal/tasks"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubMoodle serves canned JSON per wsfunction and counts calls.
func stubMoodle(t *testing.T, responses map[string]string) (*httptest.Server, map[string]int) {
	t.Helper()
	calls := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn := r.URL.Query().Get("wsfunction")
		calls[fn]++
		body, ok := responses[fn]
		if !ok {
			body = `[]`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newTaskHandler(t *testing.T, db *gorm.DB, responses map[string]string) (*tasks.Handler, map[string]int) {
	t.Helper()
	srv, calls := stubMoodle(t, responses)
	logger := testutil.DiscardLogger()
	syncer := moodle.NewSyncer(db, moodle.NewClient(srv.URL, "tok", logger), logger)
	return tasks.NewHandler(db, logger, syncer), calls
}

func seedWebhookEvent(t *testing.T, db *gorm.DB, orgID uuid.UUID, eventType string) *models.WebhookEvent {
	t.Helper()
	event := &models.WebhookEvent{
		Base:           models.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Source:         "moodle",
		EventType:      eventType,
		Payload:        `{"id":42}`,
		Status:         models.WebhookStatusPending,
	}
	require.NoError(t, db.Create(event).Error)
	return event
}

func webhookTask(t *testing.T, event *models.WebhookEvent) *asynq.Task {
	t.Helper()
	task, err := tasks.NewWebhookEventTask(tasks.WebhookPayload{
		EventID:        event.ID,
		OrganizationID: event.OrganizationID,
	})
	require.NoError(t, err)
	return task
}

func TestHandleSyncCourses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	handler, calls := newTaskHandler(t, db, map[string]string{
		"core_course_get_courses": `[{"id":10,"shortname":"ALG1","fullname":"Algebra I","visible":1}]`,
	})

	task, err := tasks.NewSyncCoursesTask(tasks.SyncPayload{OrganizationID: org.ID})
	require.NoError(t, err)
	require.NoError(t, handler.HandleSyncCourses(context.Background(), task))

	assert.Equal(t, 1, calls["core_course_get_courses"])
	var count int64
	require.NoError(t, db.Model(&models.Course{}).Where("organization_id = ?", org.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleSyncAllOrdering(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org, "student")

	handler, calls := newTaskHandler(t, db, map[string]string{
		"core_user_get_users_by_field":  `[{"id":7,"email":"` + user.Email + `"}]`,
		"core_course_get_courses":       `[{"id":10,"shortname":"ALG1","fullname":"Algebra I","visible":1}]`,
		"core_enrol_get_enrolled_users": `[{"id":7,"email":"` + user.Email + `","roles":[{"shortname":"student"}]}]`,
	})

	task, err := tasks.NewSyncAllTask(tasks.SyncPayload{OrganizationID: org.ID})
	require.NoError(t, err)
	require.NoError(t, handler.HandleSyncAll(context.Background(), task))

	assert.Equal(t, 1, calls["core_user_get_users_by_field"])
	assert.Equal(t, 1, calls["core_course_get_courses"])
	// The course mirrored in this pass already had its roster fetched.
	assert.Equal(t, 1, calls["core_enrol_get_enrolled_users"])

	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, "user_id = ?", user.ID).Error)
	assert.Equal(t, "student", enrollment.RoleInCourse)
}

func TestHandleSyncBadPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler, _ := newTaskHandler(t, db, nil)

	err := handler.HandleSyncUsers(context.Background(), asynq.NewTask(tasks.TypeSyncUsers, []byte("not-json")))
	assert.Error(t, err)
}

func TestHandleWebhookEventProcessed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	handler, calls := newTaskHandler(t, db, map[string]string{
		"core_course_get_courses": `[{"id":10,"shortname":"ALG1","fullname":"Algebra I","visible":1}]`,
	})

	event := seedWebhookEvent(t, db, org.ID, "course_created")
	require.NoError(t, handler.HandleWebhookEvent(context.Background(), webhookTask(t, event)))

	assert.Equal(t, 1, calls["core_course_get_courses"])

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, models.WebhookStatusProcessed, stored.Status)
	assert.Empty(t, stored.Error)
	assert.NotNil(t, stored.ProcessedAt)

	// Redelivery of a processed event is a no-op.
	require.NoError(t, handler.HandleWebhookEvent(context.Background(), webhookTask(t, event)))
	assert.Equal(t, 1, calls["core_course_get_courses"])
}

func TestHandleWebhookEventFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	handler, _ := newTaskHandler(t, db, map[string]string{
		"core_course_get_courses": `{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`,
	})

	event := seedWebhookEvent(t, db, org.ID, "course_updated")
	err := handler.HandleWebhookEvent(context.Background(), webhookTask(t, event))
	require.Error(t, err)

	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, models.WebhookStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "invalidtoken")
	assert.NotNil(t, stored.ProcessedAt)
}

func TestHandleWebhookEventUnknownType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	handler, calls := newTaskHandler(t, db, nil)

	event := seedWebhookEvent(t, db, org.ID, "badge_awarded")
	require.NoError(t, handler.HandleWebhookEvent(context.Background(), webhookTask(t, event)))

	assert.Empty(t, calls)
	var stored models.WebhookEvent
	require.NoError(t, db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, models.WebhookStatusProcessed, stored.Status)
}

func TestHandleWebhookEventMissingRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler, _ := newTaskHandler(t, db, nil)

	task, err := tasks.NewWebhookEventTask(tasks.WebhookPayload{EventID: uuid.New()})
	require.NoError(t, err)
	assert.Error(t, handler.HandleWebhookEvent(context.Background(), task))
}

func TestHandleReportGenerate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org, "student")
	course := testutil.CreateTestCourse(t, db, org.ID, "Algebra I")
	other := testutil.CreateTestCourse(t, db, org.ID, "Biology I")

	stale := &models.CourseProgress{
		Base:            models.Base{ID: uuid.New()},
		OrganizationID:  org.ID,
		CourseID:        course.ID,
		UserID:          user.ID,
		CompletedItems:  3,
		TotalItems:      4,
		ProgressPercent: 10,
	}
	require.NoError(t, db.Create(stale).Error)

	untouched := &models.CourseProgress{
		Base:            models.Base{ID: uuid.New()},
		OrganizationID:  org.ID,
		CourseID:        other.ID,
		UserID:          user.ID,
		CompletedItems:  1,
		TotalItems:      2,
		ProgressPercent: 10,
	}
	require.NoError(t, db.Create(untouched).Error)

	handler, _ := newTaskHandler(t, db, nil)

	// Scoped to one course: the other course's record stays stale.
	task, err := tasks.NewReportGenerateTask(tasks.ReportPayload{
		OrganizationID: org.ID,
		CourseID:       &course.ID,
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleReportGenerate(context.Background(), task))

	var rec models.CourseProgress
	require.NoError(t, db.First(&rec, "id = ?", stale.ID).Error)
	assert.InDelta(t, 75.0, rec.ProgressPercent, 0.001)

	var rec2 models.CourseProgress
	require.NoError(t, db.First(&rec2, "id = ?", untouched.ID).Error)
	assert.InDelta(t, 10.0, rec2.ProgressPercent, 0.001)

	// Org-wide pass repairs the rest.
	task, err = tasks.NewReportGenerateTask(tasks.ReportPayload{OrganizationID: org.ID})
	require.NoError(t, err)
	require.NoError(t, handler.HandleReportGenerate(context.Background(), task))

	var rec3 models.CourseProgress
	require.NoError(t, db.First(&rec3, "id = ?", untouched.ID).Error)
	assert.InDelta(t, 50.0, rec3.ProgressPercent, 0.001)
}

func TestHandleReportGenerateZeroTotals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org, "student")
	course := testutil.CreateTestCourse(t, db, org.ID, "Algebra I")

	rec := &models.CourseProgress{
		Base:            models.Base{ID: uuid.New()},
		OrganizationID:  org.ID,
		CourseID:        course.ID,
		UserID:          user.ID,
		TotalItems:      0,
		ProgressPercent: 40,
	}
	require.NoError(t, db.Create(rec).Error)

	handler, _ := newTaskHandler(t, db, nil)
	task, err := tasks.NewReportGenerateTask(tasks.ReportPayload{OrganizationID: org.ID})
	require.NoError(t, err)
	require.NoError(t, handler.HandleReportGenerate(context.Background(), task))

	var stored models.CourseProgress
	require.NoError(t, db.First(&stored, "id = ?", rec.ID).Error)
	assert.Zero(t, stored.ProgressPercent)
}
