package amocrm

import (
	"github.com/fivetwenty-io/amocrm/pkg/fields"
)

// EntityType names an amoCRM entity collection in paths and link payloads.
type EntityType string

const (
	EntityLeads     EntityType = "leads"
	EntityContacts  EntityType = "contacts"
	EntityCompanies EntityType = "companies"
	EntityCustomers EntityType = "customers"
)

// Status IDs shared by every pipeline.
const (
	StatusSuccess = 142
	StatusLost    = 143
)

// Lead represents a deal. Consumer record types usually embed Lead and add
// custom-field attributes bound through a fields.Schema.
type Lead struct {
	ID                 int            `json:"id,omitempty"                   yaml:"id,omitempty"`
	Name               string         `json:"name,omitempty"                 yaml:"name,omitempty"`
	Price              int            `json:"price,omitempty"                yaml:"price,omitempty"`
	ResponsibleUserID  int            `json:"responsible_user_id,omitempty"  yaml:"responsible_user_id,omitempty"`
	GroupID            int            `json:"group_id,omitempty"             yaml:"group_id,omitempty"`
	StatusID           int            `json:"status_id,omitempty"            yaml:"status_id,omitempty"`
	PipelineID         int            `json:"pipeline_id,omitempty"          yaml:"pipeline_id,omitempty"`
	LossReasonID       int            `json:"loss_reason_id,omitempty"       yaml:"loss_reason_id,omitempty"`
	CreatedBy          int            `json:"created_by,omitempty"           yaml:"created_by,omitempty"`
	UpdatedBy          int            `json:"updated_by,omitempty"           yaml:"updated_by,omitempty"`
	CreatedAt          Timestamp      `json:"created_at,omitempty"           yaml:"created_at,omitempty"`
	UpdatedAt          Timestamp      `json:"updated_at,omitempty"           yaml:"updated_at,omitempty"`
	ClosedAt           Timestamp      `json:"closed_at,omitempty"            yaml:"closed_at,omitempty"`
	ClosestTaskAt      Timestamp      `json:"closest_task_at,omitempty"      yaml:"closest_task_at,omitempty"`
	IsDeleted          bool           `json:"is_deleted,omitempty"           yaml:"is_deleted,omitempty"`
	Score              *float64       `json:"score,omitempty"                yaml:"score,omitempty"`
	AccountID          int            `json:"account_id,omitempty"           yaml:"account_id,omitempty"`
	LaborCost          *float64       `json:"labor_cost,omitempty"           yaml:"labor_cost,omitempty"`
	CustomFieldsValues []fields.Field `json:"custom_fields_values,omitempty" yaml:"custom_fields_values,omitempty"`
	Embedded           *LeadEmbedded  `json:"_embedded,omitempty"            yaml:"embedded,omitempty"`
}

// LeadEmbedded holds the related entities returned with a lead.
type LeadEmbedded struct {
	Tags       []Tag        `json:"tags,omitempty"        yaml:"tags,omitempty"`
	Companies  []EntityRef  `json:"companies,omitempty"   yaml:"companies,omitempty"`
	Contacts   []EntityRef  `json:"contacts,omitempty"    yaml:"contacts,omitempty"`
	LossReason []LossReason `json:"loss_reason,omitempty" yaml:"loss_reason,omitempty"`
}

// Contacts returns the contacts linked to the lead. Requires with=contacts.
func (l *Lead) Contacts() []EntityRef {
	if l.Embedded == nil {
		return nil
	}

	return l.Embedded.Contacts
}

// MainContactID returns the ID of the lead's main contact.
func (l *Lead) MainContactID() (int, bool) {
	for _, ref := range l.Contacts() {
		if ref.IsMain {
			return ref.ID, true
		}
	}

	return 0, false
}

// Tags returns the tags attached to the lead.
func (l *Lead) Tags() []Tag {
	if l.Embedded == nil {
		return nil
	}

	return l.Embedded.Tags
}

// LossReason returns the loss reason of a lost lead.
func (l *Lead) LossReason() *LossReason {
	if l.Embedded == nil || len(l.Embedded.LossReason) == 0 {
		return nil
	}

	return &l.Embedded.LossReason[0]
}

// Contact represents a person.
type Contact struct {
	ID                 int              `json:"id,omitempty"                   yaml:"id,omitempty"`
	Name               string           `json:"name,omitempty"                 yaml:"name,omitempty"`
	FirstName          string           `json:"first_name,omitempty"           yaml:"first_name,omitempty"`
	LastName           string           `json:"last_name,omitempty"            yaml:"last_name,omitempty"`
	ResponsibleUserID  int              `json:"responsible_user_id,omitempty"  yaml:"responsible_user_id,omitempty"`
	GroupID            int              `json:"group_id,omitempty"             yaml:"group_id,omitempty"`
	CreatedBy          int              `json:"created_by,omitempty"           yaml:"created_by,omitempty"`
	UpdatedBy          int              `json:"updated_by,omitempty"           yaml:"updated_by,omitempty"`
	CreatedAt          Timestamp        `json:"created_at,omitempty"           yaml:"created_at,omitempty"`
	UpdatedAt          Timestamp        `json:"updated_at,omitempty"           yaml:"updated_at,omitempty"`
	ClosestTaskAt      Timestamp        `json:"closest_task_at,omitempty"      yaml:"closest_task_at,omitempty"`
	IsDeleted          bool             `json:"is_deleted,omitempty"           yaml:"is_deleted,omitempty"`
	IsUnsorted         bool             `json:"is_unsorted,omitempty"          yaml:"is_unsorted,omitempty"`
	AccountID          int              `json:"account_id,omitempty"           yaml:"account_id,omitempty"`
	CustomFieldsValues []fields.Field   `json:"custom_fields_values,omitempty" yaml:"custom_fields_values,omitempty"`
	Embedded           *ContactEmbedded `json:"_embedded,omitempty"            yaml:"embedded,omitempty"`

	// Phone and Email are projected from the PHONE and EMAIL multitext fields.
	Phone []fields.Value `json:"-" yaml:"phone,omitempty"`
	Email []fields.Value `json:"-" yaml:"email,omitempty"`
}

// ContactEmbedded holds the related entities returned with a contact.
type ContactEmbedded struct {
	Tags      []Tag       `json:"tags,omitempty"      yaml:"tags,omitempty"`
	Leads     []EntityRef `json:"leads,omitempty"     yaml:"leads,omitempty"`
	Companies []EntityRef `json:"companies,omitempty" yaml:"companies,omitempty"`
}

// Leads returns the leads linked to the contact. Requires with=leads.
func (c *Contact) Leads() []EntityRef {
	if c.Embedded == nil {
		return nil
	}

	return c.Embedded.Leads
}

// Tags returns the tags attached to the contact.
func (c *Contact) Tags() []Tag {
	if c.Embedded == nil {
		return nil
	}

	return c.Embedded.Tags
}

// Field codes of the system multitext fields every account has.
const (
	FieldCodePhone = "PHONE"
	FieldCodeEmail = "EMAIL"
)

// LeadSchema projects the custom fields of a bare Lead. It binds nothing,
// so every field round-trips untouched.
var LeadSchema = fields.MustSchema(func(l *Lead) *[]fields.Field { return &l.CustomFieldsValues })

// ContactSchema binds the system phone and email fields of a Contact.
var ContactSchema = fields.MustSchema(
	func(c *Contact) *[]fields.Field { return &c.CustomFieldsValues },
	fields.Bind("phone", fields.MultiText(fields.Code(FieldCodePhone)), func(c *Contact) *[]fields.Value { return &c.Phone }),
	fields.Bind("email", fields.MultiText(fields.Code(FieldCodeEmail)), func(c *Contact) *[]fields.Value { return &c.Email }),
)

// Pipeline represents a sales pipeline and its statuses.
type Pipeline struct {
	ID           int               `json:"id"                  yaml:"id"`
	Name         string            `json:"name"                yaml:"name"`
	Sort         int               `json:"sort"                yaml:"sort"`
	IsMain       bool              `json:"is_main"             yaml:"is_main"`
	IsUnsortedOn bool              `json:"is_unsorted_on"      yaml:"is_unsorted_on"`
	IsArchive    bool              `json:"is_archive"          yaml:"is_archive"`
	AccountID    int               `json:"account_id"          yaml:"account_id"`
	Embedded     *PipelineEmbedded `json:"_embedded,omitempty" yaml:"embedded,omitempty"`
}

// PipelineEmbedded holds the statuses of a pipeline.
type PipelineEmbedded struct {
	Statuses []Status `json:"statuses" yaml:"statuses"`
}

// Statuses returns the statuses of the pipeline.
func (p *Pipeline) Statuses() []Status {
	if p.Embedded == nil {
		return nil
	}

	return p.Embedded.Statuses
}

// Status finds a status of the pipeline by ID.
func (p *Pipeline) Status(id int) (*Status, bool) {
	statuses := p.Statuses()
	for i := range statuses {
		if statuses[i].ID == id {
			return &statuses[i], true
		}
	}

	return nil, false
}

// Status is a stage of a pipeline.
type Status struct {
	ID         int    `json:"id"          yaml:"id"`
	Name       string `json:"name"        yaml:"name"`
	Sort       int    `json:"sort"        yaml:"sort"`
	IsEditable bool   `json:"is_editable" yaml:"is_editable"`
	PipelineID int    `json:"pipeline_id" yaml:"pipeline_id"`
	Color      string `json:"color"       yaml:"color"`
	Type       int    `json:"type"        yaml:"type"`
	AccountID  int    `json:"account_id"  yaml:"account_id"`
}

// IsClosed reports whether the status is one of the terminal won/lost stages.
func (s *Status) IsClosed() bool {
	return s.ID == StatusSuccess || s.ID == StatusLost
}

// CustomFieldDefinition describes a custom field configured in the account.
type CustomFieldDefinition struct {
	ID               int               `json:"id"                          yaml:"id"`
	Name             string            `json:"name"                        yaml:"name"`
	Type             string            `json:"type"                        yaml:"type"`
	Code             string            `json:"code,omitempty"              yaml:"code,omitempty"`
	Sort             int               `json:"sort"                        yaml:"sort"`
	AccountID        int               `json:"account_id,omitempty"        yaml:"account_id,omitempty"`
	GroupID          string            `json:"group_id,omitempty"          yaml:"group_id,omitempty"`
	EntityType       EntityType        `json:"entity_type,omitempty"       yaml:"entity_type,omitempty"`
	IsAPIOnly        bool              `json:"is_api_only"                 yaml:"is_api_only"`
	IsDeletable      bool              `json:"is_deletable"                yaml:"is_deletable"`
	IsPredefined     bool              `json:"is_predefined"               yaml:"is_predefined"`
	Remind           string            `json:"remind,omitempty"            yaml:"remind,omitempty"`
	Enums            []CustomFieldEnum `json:"enums,omitempty"             yaml:"enums,omitempty"`
	RequiredStatuses []RequiredStatus  `json:"required_statuses,omitempty" yaml:"required_statuses,omitempty"`
}

// CustomFieldEnum is one option of a select-like custom field.
type CustomFieldEnum struct {
	ID    int    `json:"id"             yaml:"id"`
	Value string `json:"value"          yaml:"value"`
	Sort  int    `json:"sort"           yaml:"sort"`
	Code  string `json:"code,omitempty" yaml:"code,omitempty"`
}

// RequiredStatus marks a status a field must be filled in before reaching.
type RequiredStatus struct {
	PipelineID int `json:"pipeline_id" yaml:"pipeline_id"`
	StatusID   int `json:"status_id"   yaml:"status_id"`
}

// Key returns the addressing identity of the field. The code is preferred
// because it survives copying the field set between accounts.
func (d *CustomFieldDefinition) Key() fields.Key {
	if d.Code != "" {
		return fields.Code(d.Code)
	}

	return fields.ID(d.ID)
}

// EnumValue returns the wire value for the option with the given label,
// suitable for writing through a Select converter.
func (d *CustomFieldDefinition) EnumValue(label string) (fields.Value, bool) {
	for _, enum := range d.Enums {
		if enum.Value == label {
			return fields.Value{Value: enum.Value, EnumID: fields.Int(enum.ID)}, true
		}
	}

	return fields.Value{}, false
}

// EnumOptions builds Select options keyed by option label.
func (d *CustomFieldDefinition) EnumOptions() []fields.EnumOption {
	options := make([]fields.EnumOption, 0, len(d.Enums))
	for _, enum := range d.Enums {
		options = append(options, fields.Enum(enum.Value, fields.Value{Value: enum.Value, EnumID: fields.Int(enum.ID)}))
	}

	return options
}

// User is an account user.
type User struct {
	ID     int        `json:"id"               yaml:"id"`
	Name   string     `json:"name"             yaml:"name"`
	Email  string     `json:"email"            yaml:"email"`
	Lang   string     `json:"lang,omitempty"   yaml:"lang,omitempty"`
	Rights UserRights `json:"rights,omitempty" yaml:"rights,omitempty"`
}

// UserRights lists the permissions of a user. Entity rights use the
// single-letter scopes A (all), G (group), M (own) and D (denied).
type UserRights struct {
	Leads         EntityRights  `json:"leads"                   yaml:"leads"`
	Contacts      EntityRights  `json:"contacts"                yaml:"contacts"`
	Companies     EntityRights  `json:"companies"               yaml:"companies"`
	Tasks         TaskRights    `json:"tasks"                   yaml:"tasks"`
	MailAccess    bool          `json:"mail_access"             yaml:"mail_access"`
	CatalogAccess bool          `json:"catalog_access"          yaml:"catalog_access"`
	FilesAccess   bool          `json:"files_access"            yaml:"files_access"`
	StatusRights  []StatusRight `json:"status_rights,omitempty" yaml:"status_rights,omitempty"`
	IsAdmin       bool          `json:"is_admin"                yaml:"is_admin"`
	IsFree        bool          `json:"is_free"                 yaml:"is_free"`
	IsActive      bool          `json:"is_active"               yaml:"is_active"`
	GroupID       *int          `json:"group_id"                yaml:"group_id,omitempty"`
	RoleID        *int          `json:"role_id"                 yaml:"role_id,omitempty"`
}

// EntityRights holds CRUD rights for an entity type.
type EntityRights struct {
	View   string `json:"view"   yaml:"view"`
	Edit   string `json:"edit"   yaml:"edit"`
	Add    string `json:"add"    yaml:"add"`
	Delete string `json:"delete" yaml:"delete"`
	Export string `json:"export" yaml:"export"`
}

// TaskRights holds task rights.
type TaskRights struct {
	Edit   string `json:"edit"   yaml:"edit"`
	Delete string `json:"delete" yaml:"delete"`
}

// StatusRight overrides entity rights for leads in a given status.
type StatusRight struct {
	EntityType string            `json:"entity_type" yaml:"entity_type"`
	PipelineID int               `json:"pipeline_id" yaml:"pipeline_id"`
	StatusID   int               `json:"status_id"   yaml:"status_id"`
	Rights     map[string]string `json:"rights"      yaml:"rights"`
}

// EntityLink connects two entities (lead to contact, lead to catalog element...).
type EntityLink struct {
	EntityID     int           `json:"entity_id,omitempty"   yaml:"entity_id,omitempty"`
	EntityType   EntityType    `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	ToEntityID   int           `json:"to_entity_id"          yaml:"to_entity_id"`
	ToEntityType EntityType    `json:"to_entity_type"        yaml:"to_entity_type"`
	Metadata     *LinkMetadata `json:"metadata,omitempty"    yaml:"metadata,omitempty"`
}

// LinkMetadata carries link details that depend on the linked entity type.
type LinkMetadata struct {
	Quantity    *float64 `json:"quantity,omitempty"     yaml:"quantity,omitempty"`
	CatalogID   *int     `json:"catalog_id,omitempty"   yaml:"catalog_id,omitempty"`
	MainContact *bool    `json:"main_contact,omitempty" yaml:"main_contact,omitempty"`
	PriceID     *int     `json:"price_id,omitempty"     yaml:"price_id,omitempty"`
}
