package outbound

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatMoney(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), cents)
}

func ItemAddedText(code, name string, unitPrice decimal.Decimal, quantity int, orderTotal decimal.Decimal) string {
	return fmt.Sprintf("✅ %s - %s (%s) adicionado ao seu carrinho!\nQuantidade: %d\nTotal do pedido: %s",
		code, name, FormatMoney(unitPrice), quantity, FormatMoney(orderTotal))
}

func ProductUnavailableText(code, name string) string {
	return fmt.Sprintf("😔 Que pena! O produto %s - %s esgotou. Avisaremos se voltar ao estoque.", code, name)
}

func CheckoutLinkText(orderTotal decimal.Decimal, link string) string {
	return fmt.Sprintf("🛒 Seu pedido está separado!\nTotal: %s\nFinalize seu pagamento aqui: %s", FormatMoney(orderTotal), link)
}

func PaymentConfirmationText(orderTotal decimal.Decimal) string {
	return fmt.Sprintf("🎉 Pagamento confirmado! Recebemos %s. Obrigado pela compra!", FormatMoney(orderTotal))
}

func OrderCancelledText() string {
	return "😕 Seu pedido foi cancelado. Qualquer dúvida é só chamar."
}
