package profile

import (
	"time"

	"github.com/tokmz/advisor/internal/model"
)

// NotAvailable 职业信息的缺省值
const NotAvailable = "N/A"

// PersonalInfo 个人信息
type PersonalInfo struct {
	Name     string `json:"name" binding:"max=100"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"max=15"`
	Location string `json:"location" binding:"max=100"`
}

// CareerInfo 职业信息，空字段按 N/A 保存
type CareerInfo struct {
	CurrentRole       string `json:"currentRole" binding:"max=100"`
	Industry          string `json:"industry" binding:"max=100"`
	ExpectedSalary    string `json:"expectedSalary" binding:"max=50"`
	PreferredLocation string `json:"preferredLocation" binding:"max=200"`
}

// AcademicBackground 教育背景
type AcademicBackground struct {
	EducationLevel    string   `json:"educationLevel" binding:"required"`
	FieldOfStudy      string   `json:"fieldOfStudy" binding:"required"`
	YearsOfExperience string   `json:"yearsOfExperience" binding:"required"`
	Interests         []string `json:"interests"`
}

// Profile 职业档案
type Profile struct {
	PersonalInfo       PersonalInfo        `json:"personalInfo" binding:"required"`
	CareerInfo         CareerInfo          `json:"careerInfo"`
	AcademicBackground *AcademicBackground `json:"academicBackground,omitempty" binding:"omitempty"`
}

// Response 档案及其时间戳
type Response struct {
	UserID    string    `json:"user_id"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CareerForm 职业表单提交的字段，七项必填
type CareerForm struct {
	EducationLevel    string   `json:"educationLevel"`
	FieldOfStudy      string   `json:"fieldOfStudy"`
	YearsOfExperience string   `json:"yearsOfExperience"`
	Interests         []string `json:"interests"`
	CurrentRole       string   `json:"currentRole"`
	Industry          string   `json:"industry"`
	ExpectedSalary    string   `json:"expectedSalary"`
	PreferredLocation string   `json:"preferredLocation"`
}

func (f *CareerForm) complete() bool {
	for _, v := range []string{
		f.EducationLevel, f.FieldOfStudy, f.YearsOfExperience,
		f.CurrentRole, f.Industry, f.ExpectedSalary, f.PreferredLocation,
	} {
		if v == "" {
			return false
		}
	}
	return true
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func toModel(userID string, p *Profile) *model.CareerProfile {
	m := &model.CareerProfile{
		UserID:            userID,
		Name:              p.PersonalInfo.Name,
		Email:             p.PersonalInfo.Email,
		Phone:             p.PersonalInfo.Phone,
		Location:          p.PersonalInfo.Location,
		CurrentRole:       orNA(p.CareerInfo.CurrentRole),
		Industry:          orNA(p.CareerInfo.Industry),
		ExpectedSalary:    orNA(p.CareerInfo.ExpectedSalary),
		PreferredLocation: orNA(p.CareerInfo.PreferredLocation),
	}
	if a := p.AcademicBackground; a != nil {
		m.HasAcademic = true
		m.EducationLevel = a.EducationLevel
		m.FieldOfStudy = a.FieldOfStudy
		m.YearsOfExperience = a.YearsOfExperience
		m.Interests = a.Interests
	}
	if m.Interests == nil {
		m.Interests = []string{}
	}
	return m
}

func fromModel(m *model.CareerProfile) *Response {
	r := &Response{
		UserID: m.UserID,
		Profile: Profile{
			PersonalInfo: PersonalInfo{
				Name:     m.Name,
				Email:    m.Email,
				Phone:    m.Phone,
				Location: m.Location,
			},
			CareerInfo: CareerInfo{
				CurrentRole:       m.CurrentRole,
				Industry:          m.Industry,
				ExpectedSalary:    m.ExpectedSalary,
				PreferredLocation: m.PreferredLocation,
			},
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.HasAcademic {
		interests := m.Interests
		if interests == nil {
			interests = []string{}
		}
		r.Profile.AcademicBackground = &AcademicBackground{
			EducationLevel:    m.EducationLevel,
			FieldOfStudy:      m.FieldOfStudy,
			YearsOfExperience: m.YearsOfExperience,
			Interests:         interests,
		}
	}
	return r
}
