package registration

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("registration")
	ErrDocumentNotFound = core.NewNotFoundError("document")
	ErrDuplicate        = errors.New("an application for this student is already pending")
	ErrNotPending       = errors.New("only pending registrations can be reviewed")

	errNoSchool = "school not found"
)

type (
	Repository interface {
		CreateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		QueryRegistrations(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Registration, int, error)
		GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (Registration, error)
		// ReviewRegistration saves the review of reg only while the stored registration is still pending.
		// It returns ErrNotPending when another review got there first.
		ReviewRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		DeleteRegistration(ctx context.Context, id string, exec ...core.DBExecutor) error
		// HasPending reports whether a pending registration matches the filter (case-insensitive names & email).
		HasPending(ctx context.Context, filter DuplicateFilter, exec ...core.DBExecutor) (bool, error)
	}

	SchoolGetter interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	StudentCreator interface {
		Create(ctx context.Context, ns student.NewStudent, exec ...core.DBExecutor) (student.Student, error)
	}

	Service interface {
		// ValidateStep validates steps 1 to step of an application, in order.
		ValidateStep(ctx context.Context, app Application, step int, docs []DocumentInput) error
		Submit(ctx context.Context, app Application, uploads []Upload) (Registration, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Registration, int, error)
		GetByID(ctx context.Context, id string) (Registration, error)
		OpenDocument(ctx context.Context, reg Registration, docID string) (Document, io.ReadCloser, error)
		Approve(ctx context.Context, reg Registration, reviewerID string, review Review) (Registration, error)
		Reject(ctx context.Context, reg Registration, reviewerID string, review Review) (Registration, error)
		Delete(ctx context.Context, reg Registration) error
		// DeleteBySchool removes every registration of a school along with its documents.
		DeleteBySchool(ctx context.Context, schoolID string) error
	}

	service struct {
		repo     Repository
		docs     DocumentStore
		tx       core.Transactor
		schools  SchoolGetter
		students StudentCreator
		mailSvc  core.EmailService
		logger   core.Logger
		rules    DocumentRules
	}
)

var _ Service = (*service)(nil)

type Deps struct {
	Repo     Repository
	Docs     DocumentStore
	Tx       core.Transactor
	Schools  SchoolGetter
	Students StudentCreator
	MailSvc  core.EmailService
	Logger   core.Logger
}

func NewService(deps Deps, conf *core.Config) Service {
	return &service{
		repo:     deps.Repo,
		docs:     deps.Docs,
		tx:       deps.Tx,
		schools:  deps.Schools,
		students: deps.Students,
		mailSvc:  deps.MailSvc,
		logger:   deps.Logger,
		rules: DocumentRules{
			MaxSize:      conf.Storage.MaxDocumentSize,
			MaxDocuments: conf.Storage.MaxDocuments,
			AllowedTypes: conf.Storage.AllowedDocumentTypes,
		},
	}
}

func (svc *service) ValidateStep(ctx context.Context, app Application, step int, docs []DocumentInput) error {
	app.Clean()
	if err := app.ValidateUpTo(step, docs, svc.rules); err != nil {
		return err
	}
	if step >= StepAcademic {
		return svc.checkSchool(ctx, app.SchoolID)
	}
	return nil
}

func (svc *service) checkSchool(ctx context.Context, schoolID string) error {
	if _, err := svc.schools.GetByID(ctx, schoolID); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return &StepError{
				Step:   StepAcademic,
				Name:   stepNames[StepAcademic],
				Fields: []core.FieldError{{Field: "school_id", Error: errNoSchool}},
			}
		}
		return errors.Wrap(err, "finding school")
	}
	return nil
}

func (svc *service) Submit(ctx context.Context, app Application, uploads []Upload) (Registration, error) {
	app.Clean()
	inputs := make([]DocumentInput, 0, len(uploads))
	for _, up := range uploads {
		inputs = append(inputs, up.DocumentInput)
	}
	if err := svc.ValidateStep(ctx, app, NumSteps, inputs); err != nil {
		return Registration{}, err
	}

	dup, err := svc.repo.HasPending(ctx, DuplicateFilter{
		GuardianEmail: app.GuardianEmail,
		FirstName:     app.FirstName,
		LastName:      app.LastName,
		DateOfBirth:   app.DateOfBirth,
	})
	if err != nil {
		return Registration{}, errors.Wrap(err, "checking duplicate registrations")
	}
	if dup {
		return Registration{}, core.NewValidationError(ErrDuplicate)
	}

	now := time.Now().UTC()
	reg := Registration{
		ID:          uuid.NewString(),
		Application: app,
		Status:      StatusPending,
		Documents:   make(Documents, 0, len(uploads)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, up := range uploads {
		doc, err := svc.storeDocument(ctx, reg.ID, up)
		if err != nil {
			svc.removeDocuments(reg.Documents)
			return Registration{}, err
		}
		reg.Documents = append(reg.Documents, doc)
	}

	created, err := svc.repo.CreateRegistration(ctx, reg)
	if err != nil {
		svc.removeDocuments(reg.Documents)
		return Registration{}, errors.Wrap(err, "creating registration")
	}

	svc.notifyGuardian(created, "Registration Received", "registration_received", nil)
	return created, nil
}

func (svc *service) storeDocument(ctx context.Context, regID string, up Upload) (Document, error) {
	doc := Document{
		ID:          uuid.NewString(),
		Filename:    path.Base(strings.ReplaceAll(up.Filename, `\`, "/")),
		ContentType: up.ContentType,
	}
	doc.Key = regID + "/" + doc.ID + strings.ToLower(path.Ext(doc.Filename))

	content := up.Content
	if svc.rules.MaxSize > 0 {
		// read one extra byte to detect oversized content
		content = io.LimitReader(up.Content, svc.rules.MaxSize+1)
	}
	n, err := svc.docs.Save(ctx, doc.Key, content)
	if err != nil {
		return Document{}, errors.Wrap(err, "saving document")
	}
	if svc.rules.MaxSize > 0 && n > svc.rules.MaxSize {
		_ = svc.docs.Delete(ctx, doc.Key)
		return Document{}, core.NewValidationError(nil, core.FieldError{
			Field: "documents",
			Error: fmt.Sprintf("%s: file exceeds %d bytes", doc.Filename, svc.rules.MaxSize),
		})
	}
	doc.Size = n
	return doc, nil
}

// removeDocuments runs on a detached context so that a cancelled request still cleans up.
func (svc *service) removeDocuments(docs Documents) {
	ctx := context.Background()
	for _, d := range docs {
		if err := svc.docs.Delete(ctx, d.Key); err != nil {
			svc.logger.Warn(fmt.Sprintf("registration: removing document %s: %v", d.Key, err), err)
		}
	}
}

func (svc *service) notifyGuardian(reg Registration, subject, tmpl string, extra map[string]interface{}) {
	app := reg.Application
	data := map[string]interface{}{
		"GuardianName": app.GuardianName,
		"StudentName":  app.FirstName + " " + app.LastName,
		"ClassName":    app.ClassName,
		"Reference":    reg.ID,
		"Note":         reg.ReviewNote,
	}
	for k, v := range extra {
		data[k] = v
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.GuardianName, Address: app.GuardianEmail}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Registration, int, error) {
	return svc.repo.QueryRegistrations(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Registration, error) {
	return svc.repo.GetRegistration(ctx, id)
}

func (svc *service) OpenDocument(ctx context.Context, reg Registration, docID string) (Document, io.ReadCloser, error) {
	doc, ok := reg.Document(docID)
	if !ok {
		return Document{}, nil, ErrDocumentNotFound
	}
	rc, err := svc.docs.Open(ctx, doc.Key)
	if err != nil {
		return Document{}, nil, errors.Wrap(err, "opening document")
	}
	return doc, rc, nil
}

func (svc *service) review(reg Registration, status, reviewerID string, review Review) Registration {
	now := time.Now().UTC()
	reg.Status = status
	reg.ReviewNote = core.CleanString(review.Note)
	reg.ReviewedBy = reviewerID
	reg.ReviewedAt = &now
	reg.UpdatedAt = now
	return reg
}

// reviewError reports a registration reviewed concurrently as a validation error.
func reviewError(err error) error {
	switch errors.Cause(err) {
	case ErrNotPending:
		return core.NewValidationError(ErrNotPending)
	case ErrNotFound:
		return ErrNotFound
	}
	return errors.Wrap(err, "reviewing registration")
}

// Approve enrols the applicant: the Student is created and linked to the registration in a single transaction.
func (svc *service) Approve(ctx context.Context, reg Registration, reviewerID string, review Review) (Registration, error) {
	if reg.Status != StatusPending {
		return Registration{}, core.NewValidationError(ErrNotPending)
	}

	app := reg.Application
	dob, err := core.ParseDate(app.DateOfBirth)
	if err != nil {
		return Registration{}, errors.Wrap(err, "parsing date of birth")
	}

	var stud student.Student
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var execs []core.DBExecutor
		if exec != nil {
			execs = append(execs, exec)
		}

		stud, err = svc.students.Create(ctx, student.NewStudent{
			SchoolID:      app.SchoolID,
			FirstName:     app.FirstName,
			LastName:      app.LastName,
			Gender:        app.Gender,
			DateOfBirth:   dob,
			ClassName:     app.ClassName,
			GuardianName:  app.GuardianName,
			GuardianPhone: app.GuardianPhone,
			GuardianEmail: app.GuardianEmail,
			Address:       app.Address,
		}, execs...)
		if err != nil {
			return errors.Wrap(err, "creating student")
		}

		reg = svc.review(reg, StatusApproved, reviewerID, review)
		reg.StudentID = stud.ID
		reg, err = svc.repo.ReviewRegistration(ctx, reg, execs...)
		return err
	})
	if err != nil {
		return Registration{}, reviewError(err)
	}

	svc.notifyGuardian(reg, "Registration Approved", "registration_approved", map[string]interface{}{
		"AdmissionNo": stud.AdmissionNo,
	})
	return reg, nil
}

func (svc *service) Reject(ctx context.Context, reg Registration, reviewerID string, review Review) (Registration, error) {
	if reg.Status != StatusPending {
		return Registration{}, core.NewValidationError(ErrNotPending)
	}
	reg = svc.review(reg, StatusRejected, reviewerID, review)
	reg, err := svc.repo.ReviewRegistration(ctx, reg)
	if err != nil {
		return Registration{}, reviewError(err)
	}
	svc.notifyGuardian(reg, "Registration Update", "registration_rejected", nil)
	return reg, nil
}

func (svc *service) Delete(ctx context.Context, reg Registration) error {
	if err := svc.repo.DeleteRegistration(ctx, reg.ID); err != nil {
		return err
	}
	svc.removeDocuments(reg.Documents)
	return nil
}

func (svc *service) DeleteBySchool(ctx context.Context, schoolID string) error {
	regs, _, err := svc.repo.QueryRegistrations(ctx, &QueryFilter{SchoolID: schoolID}, nil, nil)
	if err != nil {
		return errors.Wrap(err, "querying school registrations")
	}
	if len(regs) == 0 {
		return nil
	}

	var docs Documents
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var execs []core.DBExecutor
		if exec != nil {
			execs = append(execs, exec)
		}
		for _, reg := range regs {
			if err := svc.repo.DeleteRegistration(ctx, reg.ID, execs...); err != nil && errors.Cause(err) != ErrNotFound {
				return errors.Wrap(err, "deleting registration")
			}
			docs = append(docs, reg.Documents...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// documents go only once the rows are gone
	svc.removeDocuments(docs)
	return nil
}
