package actions

import (
	"context"
	"strings"

	"github.com/dukex/flowcrm/pkg/events"
	"github.com/dukex/flowcrm/pkg/models"
)

// ParticipantType says where the addresses of a participant descriptor come from.
type ParticipantType string

const (
	ParticipantUser                  ParticipantType = "USER"
	ParticipantRecordOwner           ParticipantType = "RECORD_OWNER"
	ParticipantRecordCreatedBy       ParticipantType = "RECORD_CREATED_BY"
	ParticipantRecordUpdatedBy       ParticipantType = "RECORD_UPDATED_BY"
	ParticipantWorkflowCreator       ParticipantType = "WORKFLOW_CREATOR"
	ParticipantWorkflowUpdater       ParticipantType = "WORKFLOW_UPDATER"
	ParticipantRecordPrimaryEmail    ParticipantType = "RECORD_PRIMARY_EMAIL"
	ParticipantRecordAllEmails       ParticipantType = "RECORD_ALL_EMAILS"
	ParticipantAllAssociatedContacts ParticipantType = "ALL_ASSOCIATED_CONTACTS"
)

// Participant describes one or more addressees of an email.
type Participant struct {
	Type     ParticipantType `json:"type"               validate:"required,oneof=USER RECORD_OWNER RECORD_CREATED_BY RECORD_UPDATED_BY WORKFLOW_CREATOR WORKFLOW_UPDATER RECORD_PRIMARY_EMAIL RECORD_ALL_EMAILS ALL_ASSOCIATED_CONTACTS"`
	EntityID int64           `json:"entityId,omitempty" validate:"required_if=Type USER"`
}

// SendEmail asks the email service to send a template to the resolved participants.
type SendEmail struct {
	EmailTemplateID int64         `json:"emailTemplateId" validate:"required,gt=0"`
	From            Participant   `json:"from"            validate:"required"`
	To              []Participant `json:"to"              validate:"dive"`
	Cc              []Participant `json:"cc"              validate:"dive"`
	Bcc             []Participant `json:"bcc"             validate:"dive"`
}

func (a *SendEmail) Type() models.ActionType {
	return models.ActionSendEmail
}

func (a *SendEmail) Validate() error {
	err := validateStruct(a.Type(), a)
	if err != nil {
		return err
	}

	if len(a.To)+len(a.Cc)+len(a.Bcc) == 0 {
		return &InvalidActionError{ActionType: a.Type(), Field: "to", Message: "at least one recipient is required"}
	}

	if !a.From.Type.isUser() {
		return &InvalidActionError{ActionType: a.Type(), Field: "from", Message: "sender must be a user"}
	}

	return nil
}

func (a *SendEmail) Apply(ctx context.Context, record models.Record, exec *Execution) (Effect, error) {
	sender := exec.resolveParticipant(ctx, record, a.From)
	if len(sender) == 0 {
		return nil, executionError(a.Type(), exec, "could not resolve sender %s", a.From.Type)
	}

	to := exec.resolveParticipants(ctx, record, a.To)
	cc := exec.resolveParticipants(ctx, record, a.Cc)
	bcc := exec.resolveParticipants(ctx, record, a.Bcc)

	if len(to)+len(cc)+len(bcc) == 0 {
		exec.logger().InfoContext(ctx, "no recipient resolved, email not sent",
			"workflow_id", exec.WorkflowID, "entity_id", record.GetID())

		return nil, nil
	}

	return Publish{Event: &events.EmailActionRequested{
		TenantID:        exec.TenantID,
		UserID:          exec.UserID,
		SenderID:        sender[0].ID,
		EmailTemplateID: a.EmailTemplateID,
		WorkflowID:      exec.WorkflowID,
		RelatedTo:       relatedTo(record),
		From:            sender[0],
		To:              to,
		Cc:              cc,
		Bcc:             bcc,
	}}, nil
}

func (t ParticipantType) isUser() bool {
	switch t {
	case ParticipantUser, ParticipantRecordOwner, ParticipantRecordCreatedBy, ParticipantRecordUpdatedBy,
		ParticipantWorkflowCreator, ParticipantWorkflowUpdater:
		return true
	default:
		return false
	}
}

func (e *Execution) resolveParticipants(ctx context.Context, record models.Record, descriptors []Participant) []events.Participant {
	resolved := make([]events.Participant, 0, len(descriptors))

	for _, d := range descriptors {
		resolved = append(resolved, e.resolveParticipant(ctx, record, d)...)
	}

	return resolved
}

// resolveParticipant expands one descriptor. Lookup failures yield no participant.
func (e *Execution) resolveParticipant(ctx context.Context, record models.Record, d Participant) []events.Participant {
	switch d.Type {
	case ParticipantUser:
		return e.userParticipant(ctx, d.EntityID)
	case ParticipantRecordOwner:
		return e.userParticipant(ctx, record.GetOwnerID())
	case ParticipantRecordCreatedBy:
		return e.userParticipant(ctx, record.GetCreatedBy())
	case ParticipantRecordUpdatedBy:
		return e.userParticipant(ctx, record.GetUpdatedBy())
	case ParticipantWorkflowCreator:
		return e.userParticipant(ctx, e.WorkflowCreatedBy)
	case ParticipantWorkflowUpdater:
		return e.userParticipant(ctx, e.WorkflowUpdatedBy)
	case ParticipantRecordPrimaryEmail:
		email, ok := models.PrimaryEmail(record)
		if !ok {
			return nil
		}

		return recordParticipants(record, []models.Email{email})
	case ParticipantRecordAllEmails:
		return recordParticipants(record, record.GetEmails())
	case ParticipantAllAssociatedContacts:
		return e.contactParticipants(ctx, record)
	default:
		return nil
	}
}

func (e *Execution) userParticipant(ctx context.Context, id int64) []events.Participant {
	if id == 0 || e.Env == nil || e.Users == nil {
		return nil
	}

	user, err := e.Users.GetUser(ctx, id, e.Token)
	if err != nil {
		e.logger().WarnContext(ctx, "failed to resolve email participant", "user_id", id, "error", err)

		return nil
	}

	if strings.TrimSpace(user.Email) == "" {
		return nil
	}

	return []events.Participant{{ID: user.ID, EntityType: "user", Name: user.Name(), Email: user.Email}}
}

func recordParticipants(record models.Record, emails []models.Email) []events.Participant {
	participants := make([]events.Participant, 0, len(emails))

	for _, email := range emails {
		if strings.TrimSpace(email.Value) == "" {
			continue
		}

		participants = append(participants, events.Participant{
			ID:         record.GetID(),
			EntityType: record.EntityType().Lower(),
			Name:       record.GetName(),
			Email:      email.Value,
		})
	}

	return participants
}

func (e *Execution) contactParticipants(ctx context.Context, record models.Record) []events.Participant {
	deal, ok := record.(*models.Deal)
	if !ok || e.Env == nil || e.Contacts == nil {
		return nil
	}

	var participants []events.Participant

	for _, ref := range deal.AssociatedContacts {
		contact, err := e.Contacts.GetContact(ctx, ref.ID, e.Token)
		if err != nil {
			e.logger().WarnContext(ctx, "failed to resolve associated contact", "contact_id", ref.ID, "error", err)

			continue
		}

		participants = append(participants, recordParticipants(contact, contact.Emails)...)
	}

	return participants
}
