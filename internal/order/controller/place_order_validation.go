package controller

import (
	"strconv"
	"unicode/utf8"

	"mealrun/internal/domain"
	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
)

func validatePlaceOrderRequest(req dto.PlaceOrderRequest) error {
	var details []apperrors.ValidationDetail

	if req.PaymentMethod != string(domain.PaymentCOD) && req.PaymentMethod != string(domain.PaymentOnline) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "paymentMethod",
			Message: "paymentMethod must be cod or online",
		})
	}

	if a := req.DeliveryAddress; a != nil {
		if a.Text == "" {
			details = append(details, apperrors.ValidationDetail{Field: "deliveryAddress.text", Message: "address text is required"})
		}
		if tooLong(a.Text, maxAddressLength) {
			details = append(details, apperrors.ValidationDetail{
				Field:   "deliveryAddress.text",
				Message: "address text must be at most " + strconv.Itoa(maxAddressLength) + " characters",
			})
		}
		if a.Latitude != nil && (*a.Latitude < -90 || *a.Latitude > 90) {
			details = append(details, apperrors.ValidationDetail{Field: "deliveryAddress.latitude", Message: "latitude must be between -90 and 90"})
		}
		if a.Longitude != nil && (*a.Longitude < -180 || *a.Longitude > 180) {
			details = append(details, apperrors.ValidationDetail{Field: "deliveryAddress.longitude", Message: "longitude must be between -180 and 180"})
		}
	}

	if len(req.SpecialInstructions) > maxInstructionsLength {
		details = append(details, apperrors.ValidationDetail{
			Field:   "specialInstructions",
			Message: "specialInstructions must be at most " + strconv.Itoa(maxInstructionsLength) + " characters",
		})
	}

	if len(req.CartItems) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "cartItems", Message: "cartItems must not be empty"})
	}
	if len(req.CartItems) > maxCartItems {
		details = append(details, apperrors.ValidationDetail{Field: "cartItems", Message: "cartItems exceeds maximum of " + strconv.Itoa(maxCartItems)})
	}

	// Track shop/item pairs for duplicate detection
	seen := make(map[[2]string]bool)

	for idx, item := range req.CartItems {
		field := "cartItems[" + strconv.Itoa(idx) + "]"

		if item.ID == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".id", Message: "id is required"})
		}
		if item.Shop == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".shop", Message: "shop is required"})
		}
		if item.Name == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".name", Message: "name is required"})
		}
		if tooLong(item.ID, maxIDLength) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".id", Message: "id must be at most " + strconv.Itoa(maxIDLength) + " characters"})
		}
		if tooLong(item.Shop, maxIDLength) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".shop", Message: "shop must be at most " + strconv.Itoa(maxIDLength) + " characters"})
		}
		if tooLong(item.Name, maxItemNameLength) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".name", Message: "name must be at most " + strconv.Itoa(maxItemNameLength) + " characters"})
		}

		key := [2]string{item.Shop, item.ID}
		if seen[key] {
			details = append(details, apperrors.ValidationDetail{Field: field + ".id", Message: "item must not be duplicated within a shop"})
		}
		seen[key] = true

		if item.Quantity < 1 || item.Quantity > maxItemQuantity {
			details = append(details, apperrors.ValidationDetail{
				Field:   field + ".quantity",
				Message: "quantity must be between 1 and " + strconv.Itoa(maxItemQuantity),
			})
		}
		if item.Price.IsNegative() {
			details = append(details, apperrors.ValidationDetail{Field: field + ".price", Message: "price must be non-negative"})
		}
		if item.Price.Round(2).GreaterThan(maxItemPrice) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".price", Message: "price must be at most " + maxItemPrice.StringFixed(2)})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}

func toPlaceOrderCommand(req dto.PlaceOrderRequest, email string) dto.PlaceOrderCommand {
	cmd := dto.PlaceOrderCommand{
		CustomerEmail:       email,
		PaymentMethod:       domain.PaymentMethod(req.PaymentMethod),
		SpecialInstructions: req.SpecialInstructions,
		Lines:               make([]dto.CartLine, len(req.CartItems)),
	}
	if a := req.DeliveryAddress; a != nil {
		cmd.DeliveryAddress = &domain.Address{Text: a.Text, Latitude: a.Latitude, Longitude: a.Longitude}
	}
	for i, item := range req.CartItems {
		cmd.Lines[i] = dto.CartLine{
			ShopID:   item.Shop,
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    item.Price.Round(2),
			Quantity: item.Quantity,
		}
	}
	return cmd
}
