package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/erazemk/remarket/internal/model"
)

const contactMessage = "Olá! Vi o item \"%s\" no seu site e gostaria de saber se ainda está disponível."

// ContactURL returns a WhatsApp link to number with a message asking whether
// item is still available. Non-digits in number are dropped.
func ContactURL(number string, item *model.Item) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	msg := fmt.Sprintf(contactMessage, item.Title)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}
