package cache

// Пространства ключей. Коллекции строятся как "<plural>:all" и "<plural>:user:<id>",
// поэтому InvalidateCollection("<plural>:") сбрасывает все коллекции сущности.
const (
	NamespaceOrder   = "order"
	NamespaceReturn  = "return"
	NamespaceInvoice = "invoice"
	NamespaceCart    = "cart"
)

func OrderKey(id string) string            { return "order:" + id }
func OrdersAllKey() string                 { return "orders:all" }
func OrdersByUserKey(userID string) string { return "orders:user:" + userID }

func ReturnKey(id string) string            { return "return:" + id }
func ReturnsAllKey() string                 { return "returns:all" }
func ReturnsByUserKey(userID string) string { return "returns:user:" + userID }

func InvoiceKey(id string) string            { return "invoice:" + id }
func InvoicesAllKey() string                 { return "invoices:all" }
func InvoicesByUserKey(userID string) string { return "invoices:user:" + userID }

func CartKey(id string) string           { return "cart:" + id }
func ActiveCartKey(userID string) string { return "carts:user:" + userID }

// CollectionPrefix возвращает префикс всех коллекций пространства.
func CollectionPrefix(namespace string) string { return namespace + "s:" }

// EntityKeys возвращает ключи, которые сбрасывает мутация сущности:
// сама сущность, коллекция "all" и коллекция пользователя-владельца.
func EntityKeys(namespace, id, userID string) []string {
	switch namespace {
	case NamespaceOrder:
		return []string{OrderKey(id), OrdersAllKey(), OrdersByUserKey(userID)}
	case NamespaceReturn:
		return []string{ReturnKey(id), ReturnsAllKey(), ReturnsByUserKey(userID)}
	case NamespaceInvoice:
		return []string{InvoiceKey(id), InvoicesAllKey(), InvoicesByUserKey(userID)}
	case NamespaceCart:
		return []string{CartKey(id), ActiveCartKey(userID)}
	default:
		return nil
	}
}
