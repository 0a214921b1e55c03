// Package testutil creates fixtures straight through the repositories.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/support"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

func timestamp(createdAt []time.Time) time.Time {
	if len(createdAt) > 0 {
		return createdAt[0].UTC()
	}
	return time.Now().UTC()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := timestamp(createdAt)
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSchool(t *testing.T, repo school.Repository, name, code string, createdAt ...time.Time) school.School {
	tstamp := timestamp(createdAt)
	s, err := repo.CreateSchool(context.Background(), school.School{
		ID:        uuid.NewString(),
		Name:      name,
		Code:      code,
		Email:     "info@" + core.CleanString(code, true /* lower */) + ".test",
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return s
}

func CreateDepartment(t *testing.T, repo department.Repository, schoolID, name string) department.Department {
	now := time.Now().UTC()
	d, err := repo.CreateDepartment(context.Background(), department.Department{
		ID:        uuid.NewString(),
		SchoolID:  schoolID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateDepartment() failed: %v", err)
	}
	return d
}

func CreateTeacher(
	t *testing.T,
	repo teacher.Repository,
	schoolID, firstName, lastName, email string,
	isActive bool,
	createdAt ...time.Time,
) teacher.Teacher {
	tstamp := timestamp(createdAt)
	tchr, err := repo.CreateTeacher(context.Background(), teacher.Teacher{
		ID:        uuid.NewString(),
		SchoolID:  schoolID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Subject:   "Mathematics",
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tchr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	schoolID, admissionNo, firstName, lastName, gender, className string,
) student.Student {
	now := time.Now().UTC()
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:           uuid.NewString(),
		SchoolID:     schoolID,
		AdmissionNo:  admissionNo,
		FirstName:    firstName,
		LastName:     lastName,
		Gender:       gender,
		DateOfBirth:  core.NewDate(2012, time.March, 14),
		ClassName:    className,
		GuardianName: "Guardian " + lastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateFeeStructure(t *testing.T, repo fee.Repository, schoolID, className, academicYear string, items ...fee.Item) fee.Structure {
	now := time.Now().UTC()
	if items == nil {
		items = []fee.Item{{Category: "Tuition", Amount: 150000}}
	}
	s, err := repo.CreateStructure(context.Background(), fee.Structure{
		ID:           uuid.NewString(),
		SchoolID:     schoolID,
		ClassName:    className,
		AcademicYear: academicYear,
		Currency:     "USD",
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateFeeStructure() failed: %v", err)
	}
	return s
}

func CreateTicket(t *testing.T, repo support.Repository, name, email, subject string, createdAt ...time.Time) support.Ticket {
	tstamp := timestamp(createdAt)
	tk, err := repo.CreateTicket(context.Background(), support.Ticket{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Subject:   subject,
		Message:   "Please help.",
		Status:    support.StatusOpen,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateTicket() failed: %v", err)
	}
	return tk
}
