package common

import (
	"fmt"
	"reflect"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"bingo-server/common/logger"
)

var (
	dialect = g.Dialect("mysql")
)

// QueryArg 通用列表查询参数；写路径各模型自带 SQL，这里只服务读路径
type QueryArg struct {
	Db      *sqlx.DB                // db connection
	Table   string                  // table
	Fields  []interface{}           // query fields
	Ex      []exp.Expression        // where conditions
	Order   []exp.OrderedExpression // order conditions
	GroupBy []interface{}           // group by fields
	Offset  uint                    // offset
	Limit   uint                    // limit
}

// EnumFields 按 db tag 枚举结构体字段名，供 SelectAll 构造列清单
func EnumFields(obj interface{}) []interface{} {

	rt := reflect.TypeOf(obj)
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if field := f.Tag.Get("db"); field != "" && field != "-" {
			fields = append(fields, field)
		}
	}

	return fields
}

// SelectAll 通用列表查询：goqu 组 SQL，sqlx 扫描结果
func SelectAll(data interface{}, args QueryArg) error {

	if args.Db == nil {
		return fmt.Errorf("invalid db")
	}
	if args.Table == "" {
		return fmt.Errorf("invalid table")
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("invalid fields")
	}

	ds := dialect.Select(args.Fields...).From(args.Table)

	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}

	if len(args.GroupBy) > 0 {
		ds = ds.GroupBy(args.GroupBy...)
	}

	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}

	if args.Offset > 0 {
		ds = ds.Offset(args.Offset)
	}

	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}

	query, _, _ := ds.ToSQL()
	err := args.Db.Select(data, query)
	if err != nil {
		logger.Error("select failed", zap.String("table", args.Table), zap.Error(err))
	}

	return err
}
