package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/linemk/storefront/internal/domain/models"
	"github.com/linemk/storefront/internal/service"
	"github.com/linemk/storefront/internal/storefront/cart"
	"github.com/linemk/storefront/internal/storefront/checkout"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) registerCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			res, err := c.client.Register(ctx, name, email, password)
			if err != nil {
				return err
			}
			if err := c.saveAuth(res); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Registered as %s <%s>\n", res.Name, res.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			res, err := c.client.Login(ctx, email, password)
			if err != nil {
				return err
			}
			if err := c.saveAuth(res); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Logged in as %s\n", res.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.store.Logout()
			if err := c.store.SaveSession(c.sessionPath); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func (c *cli) productsCmd() *cobra.Command {
	var keyword string
	var page int
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			res, err := c.client.ListProducts(ctx, keyword, page)
			if err != nil {
				return err
			}
			c.store.SetCatalog(res)
			printProducts(c, res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "filter by name")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func printProducts(c *cli, page *service.ProductPage) {
	if len(page.Products) == 0 {
		fmt.Fprintln(c.out, "No products found")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, color.New(color.Bold).Sprint("ID\tNAME\tCATEGORY\tPRICE\tSTOCK\tRATING"))
	for _, p := range page.Products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f (%d)\n",
			p.ID.Hex(), p.Name, p.Category, money(p.Price), stockLabel(p.Stock), p.Rating, p.NumReviews)
	}
	_ = tw.Flush()
	fmt.Fprintf(c.out, "Page %d of %d\n", page.Page, page.Pages)
}

func (c *cli) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show a product with its reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			p, err := c.client.GetProduct(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(c.out, color.New(color.Bold).Sprint(p.Name))
			if p.Description != "" {
				fmt.Fprintln(c.out, p.Description)
			}
			fmt.Fprintf(c.out, "Price: %s  Category: %s  Stock: %s\n", money(p.Price), p.Category, stockLabel(p.Stock))
			fmt.Fprintf(c.out, "Rating: %.1f from %d reviews\n", p.Rating, p.NumReviews)
			for _, r := range p.Reviews {
				fmt.Fprintf(c.out, "  %d/5 %s: %s\n", r.Rating, r.Name, r.Comment)
			}
			return nil
		},
	}
}

func (c *cli) reviewCmd() *cobra.Command {
	var rating int
	var comment string
	cmd := &cobra.Command{
		Use:   "review <product-id>",
		Short: "Review a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			if err := c.client.AddReview(ctx, args[0], rating, comment); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Review added")
			return nil
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 5, "rating 0-5")
	cmd.Flags().StringVar(&comment, "comment", "", "review text")
	_ = cmd.MarkFlagRequired("comment")
	return cmd
}

func (c *cli) ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List my orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			orders, err := c.client.MyOrders(ctx)
			if err != nil {
				return err
			}
			c.store.SetOrders(orders)

			if len(orders) == 0 {
				fmt.Fprintln(c.out, "No orders yet")
				return nil
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, color.New(color.Bold).Sprint("ID\tDATE\tITEMS\tTOTAL\tSTATUS"))
			for _, o := range c.store.Orders() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					o.ID.Hex(), o.CreatedAt.Format("2006-01-02"), len(o.Items), money(o.TotalAmount), o.Status)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			o, err := c.client.GetOrder(ctx, args[0])
			if err != nil {
				return err
			}
			printOrder(c, o)
			return nil
		},
	}
}

func printOrder(c *cli, o *models.Order) {
	fmt.Fprintf(c.out, "Order %s  %s\n", o.ID.Hex(), color.New(color.Bold).Sprint(o.Status))
	a := o.ShippingAddress
	fmt.Fprintf(c.out, "Ship to: %s %s, %s, %s, %s %s, %s\n", a.FirstName, a.LastName, a.Address, a.City, a.State, a.ZipCode, a.Phone)
	fmt.Fprintf(c.out, "Payment: %s %s (%s)\n", o.PaymentDetails.PaymentMethod, o.PaymentDetails.ID, o.PaymentDetails.Status)
	for _, item := range o.Items {
		fmt.Fprintf(c.out, "  %d x %s @ %s\n", item.Quantity, item.Name, money(item.Price))
	}
	fmt.Fprintf(c.out, "Total: %s\n", money(o.TotalAmount))
}

// precaptured платёж уже списан вне CLI, передаётся его идентификатор
type precaptured struct {
	id string
}

func (p precaptured) Capture(ctx context.Context, reference string, amount decimal.Decimal) (*checkout.Capture, error) {
	return &checkout.Capture{ID: p.id, Status: models.PaymentStatusCompleted}, nil
}

func (c *cli) checkoutCmd() *cobra.Command {
	var (
		items     []string
		paymentID string
		retries   int
		addr      models.ShippingAddress
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for a captured payment",
		Long: `Build a cart from --item flags, fill the shipping address and place the order.

The payment must already be captured by the provider; pass its id with --payment-id.

Example:
  storefront checkout --item 65f0c1...:2 --payment-id PAY-123 \
    --first-name Ann --last-name Lee --address "1 Main St" --city Springfield \
    --state IL --zip 62701 --phone 555-0100
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.requireSession(); err != nil {
				return err
			}
			lines, err := parseItems(items)
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			if err := c.fillCart(ctx, lines); err != nil {
				return err
			}

			wizard := checkout.NewWizard(c.log, c.store, c.client, precaptured{id: paymentID})
			if err := wizard.SetShipping(addr); err != nil {
				return err
			}
			if err := wizard.Next(); err != nil {
				return err
			}

			err = wizard.Pay(ctx)
			for attempt := 0; err != nil && wizard.HasCapture() && attempt < retries; attempt++ {
				c.log.Warn("retrying order placement", slog.Int("attempt", attempt+1), slog.Any("error", err))
				err = wizard.Pay(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(c.out, color.GreenString("Order confirmed"))
			printOrder(c, wizard.Order())
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&items, "item", "i", nil, "cart line as <product-id>:<quantity>, repeatable")
	cmd.Flags().StringVar(&paymentID, "payment-id", "", "id of the captured payment")
	cmd.Flags().IntVar(&retries, "retries", 1, "order placement retries for the captured payment")
	cmd.Flags().StringVar(&addr.FirstName, "first-name", "", "shipping first name")
	cmd.Flags().StringVar(&addr.LastName, "last-name", "", "shipping last name")
	cmd.Flags().StringVar(&addr.Address, "address", "", "shipping street address")
	cmd.Flags().StringVar(&addr.City, "city", "", "shipping city")
	cmd.Flags().StringVar(&addr.State, "state", "", "shipping state")
	cmd.Flags().StringVar(&addr.ZipCode, "zip", "", "shipping zip code")
	cmd.Flags().StringVar(&addr.Phone, "phone", "", "contact phone")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("payment-id")
	return cmd
}

// fillCart загружает товары и кладёт их в корзину; количество ограничивается остатком
func (c *cli) fillCart(ctx context.Context, lines []service.OrderLine) error {
	for _, l := range lines {
		p, err := c.client.GetProduct(ctx, l.ProductID)
		if err != nil {
			return fmt.Errorf("load product %s: %w", l.ProductID, err)
		}
		if err := c.store.UpdateCart(func(ct *cart.Cart) error { return ct.Add(*p, l.Quantity) }); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	for _, l := range c.store.CartLines() {
		fmt.Fprintf(c.out, "  %d x %s @ %s\n", l.Quantity, l.Product.Name, money(l.Product.Price))
	}
	fmt.Fprintf(c.out, "Cart total: %s\n", c.store.CartTotal().StringFixed(2))
	return nil
}

func parseItems(raw []string) ([]service.OrderLine, error) {
	lines := make([]service.OrderLine, 0, len(raw))
	for _, item := range raw {
		id, qty, found := strings.Cut(item, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: empty product id in %q", service.ErrValidation, item)
		}
		quantity := 1
		if found {
			n, err := strconv.Atoi(strings.TrimSpace(qty))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("%w: invalid quantity in %q", service.ErrValidation, item)
			}
			quantity = n
		}
		lines = append(lines, service.OrderLine{ProductID: id, Quantity: quantity})
	}
	return lines, nil
}

func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

func stockLabel(stock int) string {
	if stock == 0 {
		return "out of stock"
	}
	return strconv.Itoa(stock)
}
