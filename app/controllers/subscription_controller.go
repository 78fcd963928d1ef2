package controllers

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/yuu19/SubTrack/app/models"
	"github.com/yuu19/SubTrack/app/repository"
	"github.com/yuu19/SubTrack/internal/pkg/billing"
	"github.com/yuu19/SubTrack/internal/pkg/usercontext"
)

// subscriptionForm carries the submission endpoint's form fields.
type subscriptionForm struct {
	ServiceName      string          `validate:"required,min=1,max=150"`
	Cycle            string          `validate:"required,oneof=monthly quarterly yearly"`
	Amount           decimal.Decimal `validate:"-"`
	FirstPaymentDate string          `validate:"required"`
	NotifyDaysBefore int             `validate:"gte=0"`
	Tags             []string
}

func (f *subscriptionForm) Validate() error {
	v := validator.New()

	return v.Struct(f)
}

// parseSubscriptionForm decodes and validates the form-encoded submission.
// The first payment date must be a real calendar date here even though the
// calculator itself tolerates garbage: a bad date is user input to reject,
// not internal state to limp along with.
func parseSubscriptionForm(c *fiber.Ctx) (*subscriptionForm, string) {
	form := &subscriptionForm{
		ServiceName:      c.FormValue("service_name"),
		Cycle:            c.FormValue("cycle"),
		FirstPaymentDate: c.FormValue("first_payment_date"),
		NotifyDaysBefore: 1,
	}

	amount, err := decimal.NewFromString(c.FormValue("amount"))
	if err != nil {
		return nil, "invalid amount"
	}
	if amount.IsNegative() {
		return nil, "amount must not be negative"
	}
	form.Amount = amount

	if raw := c.FormValue("notify_days_before"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, "invalid notify_days_before"
		}
		form.NotifyDaysBefore = days
	}

	for _, tag := range c.Request().PostArgs().PeekMulti("tags") {
		if len(tag) > 0 {
			form.Tags = append(form.Tags, string(tag))
		}
	}

	if err := form.Validate(); err != nil {
		return nil, "invalid subscription form"
	}
	if _, ok := billing.ParseDate(form.FirstPaymentDate); !ok {
		return nil, "invalid first payment date"
	}

	return form, ""
}

// HandleSubscriptionList returns the owner's subscriptions newest-first,
// with derived billing fields refreshed on load.
func HandleSubscriptionList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(errorEnvelope("login required"))
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	subs, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("subscriptions: list for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to load subscriptions"))
	}

	if err := refreshBillingFields(repo, c, subs); err != nil {
		log.Printf("subscriptions: refresh billing for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to refresh subscriptions"))
	}

	return c.JSON(successEnvelope(subs))
}

// HandleSubscriptionCreate stores a new subscription for the session user
// and responds with the refreshed list. This is the endpoint the offline
// sync client replays its queue against.
func HandleSubscriptionCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(errorEnvelope("login required"))
	}

	form, msg := parseSubscriptionForm(c)
	if form == nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope(msg))
	}

	info := billing.ComputeNextBilling(form.FirstPaymentDate, form.Cycle)
	sub := &models.Subscription{
		UserID:               userCtx.UserID,
		ServiceName:          form.ServiceName,
		Cycle:                form.Cycle,
		Amount:               form.Amount,
		FirstPaymentDate:     form.FirstPaymentDate,
		NextBillingAt:        info.NextBillingAt,
		DaysUntilNextBilling: info.DaysUntilNextBilling,
		NotifyDaysBefore:     form.NotifyDaysBefore,
		Tags:                 form.Tags,
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	if err := repo.Create(sub); err != nil {
		log.Printf("subscriptions: create for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to save subscription"))
	}

	subs, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("subscriptions: reload for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to load subscriptions"))
	}

	return c.JSON(successEnvelope(subs))
}

// HandleSubscriptionUpdate rewrites an existing subscription owned by the
// session user, recomputing its billing fields.
func HandleSubscriptionUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(errorEnvelope("login required"))
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope("invalid subscription id"))
	}

	form, msg := parseSubscriptionForm(c)
	if form == nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope(msg))
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	sub, err := repo.GetByID(uint(id))
	if err != nil || sub.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(errorEnvelope("subscription not found"))
	}

	info := billing.ComputeNextBilling(form.FirstPaymentDate, form.Cycle)
	sub.ServiceName = form.ServiceName
	sub.Cycle = form.Cycle
	sub.Amount = form.Amount
	sub.FirstPaymentDate = form.FirstPaymentDate
	sub.NextBillingAt = info.NextBillingAt
	sub.DaysUntilNextBilling = info.DaysUntilNextBilling
	sub.NotifyDaysBefore = form.NotifyDaysBefore
	sub.Tags = form.Tags

	if err := repo.Update(sub); err != nil {
		log.Printf("subscriptions: update %d: %v", sub.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to update subscription"))
	}

	subs, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to load subscriptions"))
	}

	return c.JSON(successEnvelope(subs))
}

// HandleSubscriptionDelete removes a subscription owned by the session user.
func HandleSubscriptionDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(errorEnvelope("login required"))
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorEnvelope("invalid subscription id"))
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	if err := repo.Delete(uint(id), userCtx.UserID); err != nil {
		log.Printf("subscriptions: delete %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to delete subscription"))
	}

	subs, err := repo.GetByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorEnvelope("failed to load subscriptions"))
	}

	return c.JSON(successEnvelope(subs))
}
