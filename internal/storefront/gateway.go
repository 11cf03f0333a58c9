package storefront

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/retailhub/checkout-service/internal/domain/cart"
	"github.com/retailhub/checkout-service/internal/domain/checkout"
	"github.com/retailhub/checkout-service/internal/domain/customer"
	"github.com/retailhub/checkout-service/internal/domain/discount"
)

// Compile-time check: the client satisfies the pipeline's gateway contract.
var _ checkout.Gateway = (*Client)(nil)

// ErrNotFound is returned when the storefront has no record for the
// requested id.
var ErrNotFound = errors.New("storefront: not found")

// GetCustomerByID fetches the customer profile.
func (c *Client) GetCustomerByID(ctx context.Context, id string) (*customer.Profile, error) {
	data, err := c.execute(ctx, "GetCustomerById", queryGetCustomerByID, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(id)
	})
	if err != nil {
		return nil, err
	}

	profile := &customer.Profile{ID: id}
	found := false
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "customer" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		found = true
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "firstName":
				return decodeStr(d, &profile.FirstName)
			case "lastName":
				return decodeStr(d, &profile.LastName)
			case "email":
				return decodeStr(d, &profile.Email)
			case "phone":
				return decodeStr(d, &profile.Phone)
			default:
				return d.Skip()
			}
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode customer")
	}
	if !found {
		return nil, ErrNotFound
	}
	return profile, nil
}

// GetDefaultAddress fetches the customer's designated primary shipping
// address.
func (c *Client) GetDefaultAddress(ctx context.Context, customerID string) (*customer.DefaultAddress, error) {
	data, err := c.execute(ctx, "GetAddressesDefaultId", queryGetDefaultAddress, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(customerID)
	})
	if err != nil {
		return nil, err
	}

	addr := &customer.DefaultAddress{}
	found := false
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "customer" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "defaultAddress" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			found = true
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "id":
					return decodeStr(d, &addr.ID)
				case "name":
					return decodeStr(d, &addr.Name)
				case "phone":
					return decodeStr(d, &addr.Phone)
				case "address1":
					return decodeStr(d, &addr.Address1)
				case "address2":
					return decodeStr(d, &addr.Address2)
				case "city":
					return decodeStr(d, &addr.City)
				case "country":
					return decodeStr(d, &addr.Country)
				default:
					return d.Skip()
				}
			})
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode default address")
	}
	if !found {
		return nil, ErrNotFound
	}
	return addr, nil
}

// CreateDraftOrder submits the assembled payload and returns the created
// draft order id. Mutation userErrors surface as *APIError.
func (c *Client) CreateDraftOrder(ctx context.Context, input checkout.DraftOrderInput) (string, error) {
	data, err := c.execute(ctx, "CreateDraftOrder", mutationCreateDraftOrder, func(e *jx.Encoder) {
		e.FieldStart("input")
		encodeDraftOrderInput(e, input)
	})
	if err != nil {
		return "", err
	}

	var (
		orderID  string
		userErrs []string
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "draftOrderCreate" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "draftOrder":
				if d.Next() == jx.Null {
					return d.Null()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "id" {
						return d.Skip()
					}
					return decodeStr(d, &orderID)
				})
			case "userErrors":
				return decodeUserErrors(d, &userErrs)
			default:
				return d.Skip()
			}
		})
	}); err != nil {
		return "", errors.Wrap(err, "decode draft order create")
	}

	if len(userErrs) > 0 {
		return "", &APIError{Operation: "CreateDraftOrder", Messages: userErrs}
	}
	if orderID == "" {
		return "", errors.New("draft order create returned no id")
	}
	return orderID, nil
}

// SendDraftOrderInvoice emails the draft order invoice to the customer.
func (c *Client) SendDraftOrderInvoice(ctx context.Context, draftOrderID string) error {
	data, err := c.execute(ctx, "DraftOrderInvoiceSend", mutationInvoiceSend, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(draftOrderID)
	})
	if err != nil {
		return err
	}
	return decodeAckPayload(data, "draftOrderInvoiceSend", "DraftOrderInvoiceSend")
}

// MarkOrderAsPaid captures payment on the created order.
func (c *Client) MarkOrderAsPaid(ctx context.Context, orderID string) error {
	data, err := c.execute(ctx, "MarkAsPaid", mutationMarkAsPaid, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(orderID)
	})
	if err != nil {
		return err
	}
	return decodeAckPayload(data, "orderMarkAsPaid", "MarkAsPaid")
}

// TagCustomerWithUsedDiscount annotates the customer record with the used
// discount title.
func (c *Client) TagCustomerWithUsedDiscount(ctx context.Context, customerID, discountTitle string) error {
	data, err := c.execute(ctx, "AddTags", mutationAddTags, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(customerID)
		e.FieldStart("tags")
		e.ArrStart()
		e.Str(discountTitle)
		e.ArrEnd()
	})
	if err != nil {
		return err
	}
	return decodeAckPayload(data, "tagsAdd", "AddTags")
}

// DeleteCartItem removes one bag line by deleting its backing draft order.
func (c *Client) DeleteCartItem(ctx context.Context, draftOrderID string) error {
	data, err := c.execute(ctx, "DeleteDraftOrder", mutationDeleteDraftOrder, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(draftOrderID)
	})
	if err != nil {
		return err
	}

	deleted := ""
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "draftOrderDelete" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "deletedId" {
				return d.Skip()
			}
			if d.Next() == jx.Null {
				return d.Null()
			}
			return decodeStr(d, &deleted)
		})
	}); err != nil {
		return errors.Wrap(err, "decode draft order delete")
	}
	if deleted == "" {
		return ErrNotFound
	}
	return nil
}

// CartItemsByCustomer lists the customer's bag: one draft order per line.
func (c *Client) CartItemsByCustomer(ctx context.Context, customerID string) ([]cart.Item, error) {
	data, err := c.execute(ctx, "GetDraftOrdersByCustomer", queryDraftOrdersByCustomer, func(e *jx.Encoder) {
		e.FieldStart("query")
		e.Str("customer_id:" + customerID)
	})
	if err != nil {
		return nil, err
	}

	var items []cart.Item
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "draftOrders" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "nodes" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				items = append(items, item)
				return nil
			})
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode draft orders")
	}
	return items, nil
}

// UpdateCartItem rewrites the single line of a bag draft order, used for
// quantity changes.
func (c *Client) UpdateCartItem(ctx context.Context, item cart.Item) error {
	data, err := c.execute(ctx, "UpdateDraftOrder", mutationUpdateDraftOrder, func(e *jx.Encoder) {
		e.FieldStart("id")
		e.Str(item.DraftOrderID)
		e.FieldStart("input")
		e.ObjStart()
		e.FieldStart("lineItems")
		e.ArrStart()
		e.ObjStart()
		e.FieldStart("variantId")
		e.Str(item.VariantID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
		e.ArrEnd()
		e.ObjEnd()
	})
	if err != nil {
		return err
	}
	return decodeAckPayload(data, "draftOrderUpdate", "UpdateDraftOrder")
}

// ListDiscounts fetches the currently published discount codes.
func (c *Client) ListDiscounts(ctx context.Context) ([]discount.Rule, error) {
	data, err := c.execute(ctx, "GetDiscounts", queryListDiscounts, nil)
	if err != nil {
		return nil, err
	}

	var rules []discount.Rule
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "codeDiscountNodes" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "nodes" {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				rule, ok, err := decodeDiscountNode(d)
				if err != nil {
					return err
				}
				if ok {
					rules = append(rules, rule)
				}
				return nil
			})
		})
	}); err != nil {
		return nil, errors.Wrap(err, "decode discounts")
	}
	return rules, nil
}

// --- decode helpers ---

func decodeStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

// decodeAckPayload handles the common mutation shape: an object under
// payloadKey whose only interesting member is userErrors.
func decodeAckPayload(data jx.Raw, payloadKey, operation string) error {
	var userErrs []string
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != payloadKey {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "userErrors" {
				return d.Skip()
			}
			return decodeUserErrors(d, &userErrs)
		})
	}); err != nil {
		return errors.Wrapf(err, "decode %s", operation)
	}
	if len(userErrs) > 0 {
		return &APIError{Operation: operation, Messages: userErrs}
	}
	return nil
}

func decodeCartItem(d *jx.Decoder) (cart.Item, error) {
	var item cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return decodeStr(d, &item.DraftOrderID)
		case "lineItems":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "nodes" {
					return d.Skip()
				}
				return d.Arr(func(d *jx.Decoder) error {
					return d.Obj(func(d *jx.Decoder, key string) error {
						switch key {
						case "title":
							return decodeStr(d, &item.Title)
						case "quantity":
							q, err := d.Int()
							if err != nil {
								return err
							}
							item.Quantity = q
							return nil
						case "originalUnitPrice":
							var raw string
							if err := decodeStr(d, &raw); err != nil {
								return err
							}
							if raw == "" {
								return nil
							}
							price, err := decimal.NewFromString(raw)
							if err != nil {
								return errors.Wrap(err, "parse unit price")
							}
							item.UnitPrice = price
							return nil
						case "variant":
							if d.Next() == jx.Null {
								return d.Null()
							}
							return d.Obj(func(d *jx.Decoder, key string) error {
								if key != "id" {
									return d.Skip()
								}
								return decodeStr(d, &item.VariantID)
							})
						default:
							return d.Skip()
						}
					})
				})
			})
		default:
			return d.Skip()
		}
	})
	return item, err
}

func decodeDiscountNode(d *jx.Decoder) (discount.Rule, bool, error) {
	var rule discount.Rule
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "codeDiscount" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "title":
				return decodeStr(d, &rule.Title)
			case "summary":
				return decodeStr(d, &rule.Description)
			case "customerGets":
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "value" {
						return d.Skip()
					}
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key != "percentage" {
							return d.Skip()
						}
						f, err := d.Float64()
						if err != nil {
							return err
						}
						// The storefront reports fractions; discounts are
						// displayed as whole percentages.
						rule.Value = decimal.NewFromFloat(f * 100)
						return nil
					})
				})
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return rule, false, err
	}
	if rule.Title == "" {
		return rule, false, nil
	}
	rule.ValueType = rule.Title
	return rule, true, nil
}

// encodeDraftOrderInput writes the DraftOrderInput variables object.
func encodeDraftOrderInput(e *jx.Encoder, input checkout.DraftOrderInput) {
	e.ObjStart()

	e.FieldStart("email")
	e.Str(input.Email)

	e.FieldStart("customerId")
	e.Str(input.Customer.ID)

	e.FieldStart("lineItems")
	e.ArrStart()
	for _, li := range input.LineItems {
		e.ObjStart()
		e.FieldStart("variantId")
		e.Str(li.VariantID)
		e.FieldStart("quantity")
		e.Int(li.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("shippingAddress")
	e.ObjStart()
	e.FieldStart("address1")
	e.Str(input.ShippingAddress.Address1)
	e.FieldStart("address2")
	e.Str(input.ShippingAddress.Address2)
	e.FieldStart("city")
	e.Str(input.ShippingAddress.City)
	e.FieldStart("country")
	e.Str(input.ShippingAddress.Country)
	e.FieldStart("phone")
	e.Str(input.ShippingAddress.Phone)
	e.FieldStart("firstName")
	e.Str(input.Customer.FirstName)
	e.ObjEnd()

	if d := input.AppliedDiscount; d != nil {
		e.FieldStart("appliedDiscount")
		e.ObjStart()
		// Encode the decimal verbatim so the value crosses the wire
		// without float rounding.
		e.FieldStart("value")
		e.Num(jx.Num(d.Value.String()))
		e.FieldStart("valueType")
		e.Str(d.ValueType)
		e.ObjEnd()
	}

	e.ObjEnd()
}
