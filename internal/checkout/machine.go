package checkout

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/submission"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is the position of the checkout flow
type Step string

const (
	StepBrowsing   Step = "browsing"
	StepCart       Step = "cart"
	StepDelivery   Step = "delivery"
	StepReview     Step = "review"
	StepSubmitting Step = "submitting"
)

const (
	cartKey  = "cart"
	stateKey = "checkout"
	guestID  = "guest"
)

var (
	ErrEmptyCart            = errs.New(errs.CodeValidation, "cart is empty")
	ErrMissingAddress       = errs.New(errs.CodeValidation, "delivery address is required")
	ErrMissingPaymentMethod = errs.New(errs.CodeValidation, "payment method is required")
	ErrInvalidTransition    = errs.New(errs.CodeValidation, "step change not allowed here")
	ErrSubmitInProgress     = errs.New(errs.CodeValidation, "order is being submitted")
)

// ProductLookup resolves products from the last synced catalog
type ProductLookup interface {
	Product(id models.ID) (models.Product, bool)
}

// ServiceLookup resolves add-on services from the last synced catalog
type ServiceLookup interface {
	Service(id models.ID) (models.Service, bool)
}

// Submitter hands a finished draft to the network or the offline queue
type Submitter interface {
	SubmitOrder(ctx context.Context, draft models.OrderDraft) (submission.Result, error)
}

// Recorder keeps submitted orders
type Recorder interface {
	Append(ctx context.Context, order models.SubmittedOrder) error
}

type state struct {
	Step     Step                 `json:"step"`
	Delivery models.Delivery      `json:"delivery"`
	Payment  models.PaymentMethod `json:"payment"`
	Services []models.Service     `json:"services"`
}

// View is a read-only picture of the cart and checkout
type View struct {
	Step         Step                 `json:"step"`
	Lines        []models.CartLine    `json:"lines"`
	ItemCount    int                  `json:"itemCount"`
	Delivery     models.Delivery      `json:"delivery"`
	Payment      models.PaymentMethod `json:"payment"`
	Services     []models.Service     `json:"services"`
	Subtotal     int64                `json:"subtotal"`
	DeliveryCost int64                `json:"deliveryCost"`
	Total        int64                `json:"total"`
	CanAdvance   bool                 `json:"canAdvance"`
}

// Machine is the cart and checkout flow of one session
type Machine struct {
	kv        store.KV
	products  ProductLookup
	services  ServiceLookup
	submitter Submitter
	recorder  Recorder
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	cart  *cart.Cart
	state state
}

// Deps are the collaborators of a Machine
type Deps struct {
	Products    ProductLookup
	Services    ServiceLookup
	Submitter   Submitter
	Recorder    Recorder
	MaxQuantity int
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewMachine loads the persisted cart and checkout state
func NewMachine(ctx context.Context, kv store.KV, deps Deps) (*Machine, error) {
	lines, _, err := store.LoadJSON[[]models.CartLine](ctx, kv, cartKey)
	if err != nil {
		return nil, err
	}
	st, found, err := store.LoadJSON[state](ctx, kv, stateKey)
	if err != nil {
		return nil, err
	}
	if !found || st.Step == "" {
		st = state{Step: StepBrowsing, Delivery: models.Delivery{Option: models.DeliveryPickup}}
	}
	if st.Step == StepSubmitting {
		st.Step = StepReview
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = util.GetLogger()
	}

	return &Machine{
		kv:        kv,
		products:  deps.Products,
		services:  deps.Services,
		submitter: deps.Submitter,
		recorder:  deps.Recorder,
		now:       deps.Now,
		logger:    deps.Logger,
		cart:      cart.New(lines, deps.MaxQuantity),
		state:     st,
	}, nil
}

// AddItem adds qty units of a catalog product
func (m *Machine) AddItem(ctx context.Context, id models.ID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	p, ok := m.products.Product(id)
	if !ok {
		return errs.Newf(errs.CodeNotFound, "product %s not found", id)
	}
	if err := m.cart.Add(p, qty); err != nil {
		return err
	}
	return m.saveCart(ctx)
}

// SetQuantity overwrites a line's quantity; qty <= 0 removes the line
func (m *Machine) SetQuantity(ctx context.Context, id models.ID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	if err := m.cart.SetQuantity(id, qty); err != nil {
		return err
	}
	return m.saveCart(ctx)
}

// RemoveItem drops a line; absent products are ignored
func (m *Machine) RemoveItem(ctx context.Context, id models.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	m.cart.Remove(id)
	return m.saveCart(ctx)
}

// Refill replaces the cart with lines re-added against the current catalog.
// Products no longer in the catalog are skipped and returned.
func (m *Machine) Refill(ctx context.Context, lines []models.CartLine) ([]models.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return nil, ErrSubmitInProgress
	}

	m.cart.Clear()
	var skipped []models.ID
	for _, l := range lines {
		p, ok := m.products.Product(l.ProductID)
		if !ok {
			skipped = append(skipped, l.ProductID)
			continue
		}
		if err := m.cart.Add(p, l.Quantity); err != nil {
			skipped = append(skipped, l.ProductID)
		}
	}
	return skipped, m.saveCart(ctx)
}

// OpenCart moves from browsing to the cart step
func (m *Machine) OpenCart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Step {
	case StepBrowsing:
		m.state.Step = StepCart
		return m.saveState(ctx)
	case StepSubmitting:
		return ErrSubmitInProgress
	}
	return nil
}

// Advance moves one step forward when the current step allows it
func (m *Machine) Advance(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Step {
	case StepCart:
		if m.cart.IsEmpty() {
			return ErrEmptyCart
		}
		m.state.Step = StepDelivery
	case StepDelivery:
		if m.missingAddress() {
			return ErrMissingAddress
		}
		m.state.Step = StepReview
	case StepSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrInvalidTransition
	}
	return m.saveState(ctx)
}

// Back moves one step backward
func (m *Machine) Back(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Step {
	case StepCart:
		m.state.Step = StepBrowsing
	case StepDelivery:
		m.state.Step = StepCart
	case StepReview:
		m.state.Step = StepDelivery
	case StepSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrInvalidTransition
	}
	return m.saveState(ctx)
}

// Close leaves the checkout flow without touching the cart
func (m *Machine) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	m.state.Step = StepBrowsing
	return m.saveState(ctx)
}

// SetDelivery stores the delivery selection
func (m *Machine) SetDelivery(ctx context.Context, d models.Delivery) error {
	if !d.Option.Valid() {
		return errs.Newf(errs.CodeValidation, "unknown delivery option %q", d.Option)
	}
	d.Address = strings.TrimSpace(d.Address)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	m.state.Delivery = d
	return m.saveState(ctx)
}

// SetPayment stores the payment choice
func (m *Machine) SetPayment(ctx context.Context, method models.PaymentMethod) error {
	if !method.Valid() {
		return errs.Newf(errs.CodeValidation, "unknown payment method %q", method)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	m.state.Payment = method
	return m.saveState(ctx)
}

// SetServices replaces the selected add-on services
func (m *Machine) SetServices(ctx context.Context, ids []models.ID) error {
	selected := make([]models.Service, 0, len(ids))
	seen := make(map[models.ID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		s, ok := m.services.Service(id)
		if !ok {
			return errs.Newf(errs.CodeNotFound, "service %s not found", id)
		}
		seen[id] = true
		selected = append(selected, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Step == StepSubmitting {
		return ErrSubmitInProgress
	}
	m.state.Services = selected
	return m.saveState(ctx)
}

// Total recomputes the order total from the current state
func (m *Machine) Total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ComputeTotal(m.cart.Lines(), m.state.Delivery, m.state.Services)
}

// Step returns the current checkout step
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Step
}

// Lines returns the cart lines
func (m *Machine) Lines() []models.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Lines()
}

// View returns the current cart and checkout picture
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := m.cart.Lines()
	v := View{
		Step:         m.state.Step,
		Lines:        lines,
		ItemCount:    m.cart.Count(),
		Delivery:     m.state.Delivery,
		Payment:      m.state.Payment,
		Services:     append([]models.Service{}, m.state.Services...),
		Subtotal:     m.cart.Subtotal(),
		DeliveryCost: m.state.Delivery.Cost(),
		Total:        ComputeTotal(lines, m.state.Delivery, m.state.Services),
	}
	switch m.state.Step {
	case StepCart:
		v.CanAdvance = !m.cart.IsEmpty()
	case StepDelivery:
		v.CanAdvance = !m.missingAddress()
	}
	return v
}

// Draft builds the order snapshot from the current state
func (m *Machine) Draft(user *models.User) models.OrderDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft(user)
}

// Submit validates the review step and hands the draft to the submitter.
// On success the order is recorded as pending, the cart and address are
// cleared and the flow returns to browsing. On failure the cart is kept
// and the flow returns to review.
func (m *Machine) Submit(ctx context.Context, user *models.User) (models.SubmittedOrder, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.Submit")
	defer span.End()

	m.mu.Lock()
	if err := m.validateSubmit(ctx); err != nil {
		m.mu.Unlock()
		return models.SubmittedOrder{}, err
	}
	draft := m.draft(user)
	m.state.Step = StepSubmitting
	m.mu.Unlock()

	result, err := m.submitter.SubmitOrder(ctx, draft)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		util.RecordError(span, err)
		m.state.Step = StepReview
		return models.SubmittedOrder{}, err
	}

	order := models.SubmittedOrder{
		OrderDraft:  draft,
		ID:          result.OrderID,
		SubmittedAt: draft.Timestamp,
		Status:      models.OrderStatusPending,
	}
	if !result.Queued {
		order.ID = uuid.New().String()
		order.RemoteOrderID = result.OrderID
	}

	if err := m.recorder.Append(ctx, order); err != nil {
		m.logger.Warn("Failed to record submitted order",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	m.cart.Clear()
	m.state.Delivery.Address = ""
	m.state.Step = StepBrowsing
	if err := m.saveCart(ctx); err != nil {
		m.logger.Warn("Failed to persist cleared cart", zap.Error(err))
	}
	if err := m.saveState(ctx); err != nil {
		m.logger.Warn("Failed to persist checkout state", zap.Error(err))
	}
	return order, nil
}

func (m *Machine) validateSubmit(ctx context.Context) error {
	switch m.state.Step {
	case StepReview:
	case StepSubmitting:
		return ErrSubmitInProgress
	default:
		return ErrInvalidTransition
	}
	if m.cart.IsEmpty() {
		return ErrEmptyCart
	}
	if !m.state.Payment.Valid() {
		return ErrMissingPaymentMethod
	}
	if m.missingAddress() {
		m.state.Step = StepDelivery
		if err := m.saveState(ctx); err != nil {
			m.logger.Warn("Failed to persist checkout state", zap.Error(err))
		}
		return ErrMissingAddress
	}
	return nil
}

func (m *Machine) draft(user *models.User) models.OrderDraft {
	lines := m.cart.Lines()
	d := models.OrderDraft{
		UserID:          guestID,
		Items:           lines,
		DeliveryOption:  m.state.Delivery.Option,
		DeliveryAddress: m.state.Delivery.Address,
		DeliveryCost:    m.state.Delivery.Option.BaseCost(),
		ExactTime:       m.state.Delivery.ExactTime,
		PaymentMethod:   m.state.Payment,
		Services:        append([]models.Service{}, m.state.Services...),
		TotalAmount:     ComputeTotal(lines, m.state.Delivery, m.state.Services),
		Timestamp:       m.now().UTC(),
	}
	if d.ExactTime {
		d.ExactTimeCost = models.ExactTimeCost
	}
	if user != nil {
		d.UserID = strconv.FormatInt(user.ID, 10)
		d.UserName = user.DisplayName()
		d.UserPhone = user.PhoneNumber
	}
	return d
}

func (m *Machine) missingAddress() bool {
	return m.state.Delivery.Option.RequiresAddress() && m.state.Delivery.Address == ""
}

func (m *Machine) saveCart(ctx context.Context) error {
	return store.SaveJSON(ctx, m.kv, cartKey, m.cart.Lines())
}

func (m *Machine) saveState(ctx context.Context) error {
	return store.SaveJSON(ctx, m.kv, stateKey, m.state)
}
