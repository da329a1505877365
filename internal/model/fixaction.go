package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// FixActionType is the wire discriminator of a FixAction.
type FixActionType string

const (
	FixOpenPaymentsSettings   FixActionType = "open_payments_settings"
	FixOpenCatalogProduct     FixActionType = "open_catalog_product"
	FixSyncOptions            FixActionType = "sync_options"
	FixEnableOneClick         FixActionType = "enable_one_click"
	FixRepairOfferRouting     FixActionType = "repair_offer_routing"
	FixInsertOfferButtons     FixActionType = "insert_offer_buttons"
	FixSplitCheckoutByBilling FixActionType = "split_checkout_by_billing"
)

// FixActionTypes lists every FixAction variant in declaration order.
var FixActionTypes = []FixActionType{
	FixOpenPaymentsSettings,
	FixOpenCatalogProduct,
	FixSyncOptions,
	FixEnableOneClick,
	FixRepairOfferRouting,
	FixInsertOfferButtons,
	FixSplitCheckoutByBilling,
}

// ErrUnknownFixAction is returned when decoding an unrecognized type.
var ErrUnknownFixAction = eris.New("unknown fix action")

// FixAction is an automatable remediation for a readiness issue. The set of
// implementations is closed; see FixActionTypes.
type FixAction interface {
	Type() FixActionType
	isFixAction()
}

// OpenPaymentsSettings navigates to the workspace payment settings.
type OpenPaymentsSettings struct{}

// OpenCatalogProduct navigates to a catalog product.
type OpenCatalogProduct struct {
	ProductID string `json:"productId"`
}

// SyncOptions pushes prices to the payment provider.
type SyncOptions struct {
	PriceIDs []string `json:"priceIds"`
}

// EnableOneClick turns on one-click charging for a step.
type EnableOneClick struct {
	StepID string `json:"stepId"`
}

// RepairOfferRouting fills in missing accept/decline routes of an offer.
type RepairOfferRouting struct {
	StepID string `json:"stepId"`
}

// InsertOfferButtons adds accept/decline buttons to an offer page.
type InsertOfferButtons struct {
	StepID string `json:"stepId"`
}

// SplitCheckoutByBilling splits a mixed-billing checkout in two.
type SplitCheckoutByBilling struct {
	StepID string `json:"stepId"`
}

func (OpenPaymentsSettings) Type() FixActionType   { return FixOpenPaymentsSettings }
func (OpenCatalogProduct) Type() FixActionType     { return FixOpenCatalogProduct }
func (SyncOptions) Type() FixActionType            { return FixSyncOptions }
func (EnableOneClick) Type() FixActionType         { return FixEnableOneClick }
func (RepairOfferRouting) Type() FixActionType     { return FixRepairOfferRouting }
func (InsertOfferButtons) Type() FixActionType     { return FixInsertOfferButtons }
func (SplitCheckoutByBilling) Type() FixActionType { return FixSplitCheckoutByBilling }

func (OpenPaymentsSettings) isFixAction()   {}
func (OpenCatalogProduct) isFixAction()     {}
func (SyncOptions) isFixAction()            {}
func (EnableOneClick) isFixAction()         {}
func (RepairOfferRouting) isFixAction()     {}
func (InsertOfferButtons) isFixAction()     {}
func (SplitCheckoutByBilling) isFixAction() {}

type stepActionWire struct {
	Type   FixActionType `json:"type"`
	StepID string        `json:"stepId"`
}

func (a OpenPaymentsSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type FixActionType `json:"type"`
	}{a.Type()})
}

func (a OpenCatalogProduct) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      FixActionType `json:"type"`
		ProductID string        `json:"productId"`
	}{a.Type(), a.ProductID})
}

func (a SyncOptions) MarshalJSON() ([]byte, error) {
	ids := a.PriceIDs
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(struct {
		Type     FixActionType `json:"type"`
		PriceIDs []string      `json:"priceIds"`
	}{a.Type(), ids})
}

func (a EnableOneClick) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepActionWire{a.Type(), a.StepID})
}

func (a RepairOfferRouting) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepActionWire{a.Type(), a.StepID})
}

func (a InsertOfferButtons) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepActionWire{a.Type(), a.StepID})
}

func (a SplitCheckoutByBilling) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepActionWire{a.Type(), a.StepID})
}

// DecodeFixAction decodes the wire shape of a fix action. Unknown type
// values yield an error wrapping ErrUnknownFixAction.
func DecodeFixAction(data []byte) (FixAction, error) {
	var w struct {
		Type      FixActionType `json:"type"`
		ProductID string        `json:"productId"`
		PriceIDs  []string      `json:"priceIds"`
		StepID    string        `json:"stepId"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, eris.Wrap(err, "model: decode fix action")
	}

	switch w.Type {
	case FixOpenPaymentsSettings:
		return OpenPaymentsSettings{}, nil
	case FixOpenCatalogProduct:
		return OpenCatalogProduct{ProductID: w.ProductID}, nil
	case FixSyncOptions:
		return SyncOptions{PriceIDs: w.PriceIDs}, nil
	case FixEnableOneClick:
		return EnableOneClick{StepID: w.StepID}, nil
	case FixRepairOfferRouting:
		return RepairOfferRouting{StepID: w.StepID}, nil
	case FixInsertOfferButtons:
		return InsertOfferButtons{StepID: w.StepID}, nil
	case FixSplitCheckoutByBilling:
		return SplitCheckoutByBilling{StepID: w.StepID}, nil
	default:
		return nil, eris.Wrapf(ErrUnknownFixAction, "model: type %q", w.Type)
	}
}

// decodeOptionalFixAction decodes a possibly absent fixAction field.
func decodeOptionalFixAction(raw json.RawMessage) (FixAction, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return DecodeFixAction(raw)
}
