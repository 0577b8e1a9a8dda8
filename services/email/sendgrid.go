package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/ensinoverso/backend/core"
)

type sendgridService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	client           *sendgrid.Client
	logger           core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(logger core.Logger) core.EmailService {
	return &sendgridService{
		defaultFromEmail: core.Conf.FromEmailAddress(),
		subjPrefix:       "[" + core.Conf.AppName + "] ",
		client:           sendgrid.NewSendClient(core.Conf.SendgridAPIKey),
		logger:           logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc sendgridService) sendMessage(msg *core.EmailMessage) {
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		if err := svc.send(*msg); err != nil {
			svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
		}
	}
}

func (svc sendgridService) send(msg core.EmailMessage) error {
	sgMail := sgmail.NewV3Mail()
	sgMail.Subject = svc.subjPrefix + msg.Subject
	sgMail.SetFrom(sgmail.NewEmail(svc.defaultFromEmail.Name, svc.defaultFromEmail.Address))

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgmail.NewEmail(cc.Name, cc.Address))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgmail.NewEmail(bcc.Name, bcc.Address))
	}
	sgMail.AddPersonalizations(p)

	if msg.BodyStr != "" {
		sgMail.AddContent(sgmail.NewContent("text/plain", msg.BodyStr))
	}

	for _, at := range msg.Attachments {
		sgAt := sgmail.NewAttachment()
		sgAt.SetContent(at.Content.String())
		sgAt.SetType(at.ContentType)
		sgAt.SetFilename(at.Filename)
		sgAt.SetDisposition("attachment")
		sgMail.AddAttachment(sgAt)
	}

	resp, err := svc.client.Send(sgMail)
	if err != nil {
		return errors.Wrap(err, "sending mail")
	}
	if resp.StatusCode != http.StatusAccepted {
		return errors.Errorf("sending mail failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}
