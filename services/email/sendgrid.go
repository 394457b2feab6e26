package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"sync"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

const (
	sendgridWorkers  = 4 // reminder runs can queue one message per student
	sendgridAttempts = 3
)

var sendgridBackoff = time.Second // doubled after each failed attempt; mockable

// sgClient is the part of *sendgrid.Client the service uses.
type sgClient interface {
	Send(email *sgmail.SGMailV3) (*rest.Response, error)
}

// sendgridService sends e-mails through the SendGrid v3 API. Used in QA and PROD.
type sendgridService struct {
	client     sgClient
	from       *sgmail.Email
	subjPrefix string
	site       core.SiteInfo
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	return &sendgridService{
		client:     sendgrid.NewSendClient(conf.SendgridApiKey),
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		site:       core.SiteInfo{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL},
		logger:     logger,
	}
}

// SendMessages renders and sends messages in the background, at most sendgridWorkers at a time.
func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	queue := make(chan *core.EmailMessage)
	var wg sync.WaitGroup
	for i := 0; i < sendgridWorkers && i < len(messages); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range queue {
				svc.deliver(msg)
			}
		}()
	}
	go func() {
		for _, msg := range messages {
			queue <- msg
		}
		close(queue)
		wg.Wait()
	}()
}

func (svc sendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.site); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if err := svc.send(svc.prepare(*msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email %q to %s: %v", msg.Subject, joinAddresses(msg.To), err), err)
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	p.AddCCs(sgEmails(msg.Cc)...)
	p.AddBCCs(sgEmails(msg.Bcc)...)

	m := sgmail.NewV3Mail().SetFrom(svc.from)
	m.AddPersonalizations(p)
	if msg.TemplateName != "" {
		// groups reminders & other templated mails in the SendGrid stats
		m.AddCategories(msg.TemplateName)
	}

	// text/plain must come first
	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		m.AddAttachment(sgmail.NewAttachment().
			SetContent(at.Content.String()).
			SetType(at.ContentType).
			SetFilename(at.Filename).
			SetDisposition("attachment"))
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	out := make([]*sgmail.Email, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, sgmail.NewEmail(a.Name, a.Address))
	}
	return out
}

// send retries rate-limited and server-side failures. Other 4xx responses are final.
func (svc sendgridService) send(m *sgmail.SGMailV3) error {
	delay := sendgridBackoff
	var lastErr error
	for attempt := 1; attempt <= sendgridAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
		}
		res, err := svc.client.Send(m)
		switch {
		case err != nil:
			lastErr = err
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("status %d: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return fmt.Errorf("status %d: %s", res.StatusCode, res.Body)
		default:
			return nil
		}
		svc.logger.Warn(fmt.Sprintf("sendgrid attempt %d/%d failed: %v", attempt, sendgridAttempts, lastErr))
	}
	return lastErr
}
